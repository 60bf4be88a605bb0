package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const audiomackDefaultBase = "https://api.audiomack.com/v1"

// Audiomack searches and resolves streams on the audio-sharing platform.
type Audiomack struct {
	opts   Options
	client *http.Client
	base   string
}

// NewAudiomack creates an audiomack provider. Options.Instances may carry a
// single API base override, used by tests.
func NewAudiomack(opts Options) *Audiomack {
	base := audiomackDefaultBase
	if len(opts.Instances) > 0 {
		base = opts.Instances[0]
	}
	return &Audiomack{
		opts:   opts,
		client: opts.client(),
		base:   base,
	}
}

// Name returns the human-readable provider name.
func (p *Audiomack) Name() string { return "Audiomack" }

// SourceTag returns the audio-platform tag.
func (p *Audiomack) SourceTag() string { return SourceAudiomack }

type audiomackSearchResponse struct {
	Results []audiomackSong `json:"results"`
}

type audiomackSong struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration int    `json:"duration"`
	Image    string `json:"image"`
	Uploader struct {
		Name string `json:"name"`
	} `json:"uploader"`
}

// Search queries the song search endpoint.
func (p *Audiomack) Search(ctx context.Context, query string) ([]Track, error) {
	if !p.opts.allowed(p.base) {
		return nil, fmt.Errorf("audiomack: %s throttled", hostOf(p.base))
	}

	reqURL := fmt.Sprintf("%s/search?q=%s&type=songs&limit=%d",
		p.base, url.QueryEscape(query), p.opts.maxResults())
	var resp audiomackSearchResponse
	if err := getJSON(ctx, p.client, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("audiomack: %w", err)
	}

	tracks := make([]Track, 0, len(resp.Results))
	for _, song := range resp.Results {
		if song.Title == "" || song.ID == "" {
			continue
		}
		uploader := song.Artist
		if uploader == "" {
			uploader = song.Uploader.Name
		}
		if uploader == "" {
			uploader = UnknownUploader
		}
		duration := song.Duration
		if duration < 0 {
			duration = 0
		}
		tracks = append(tracks, Track{
			Title:        song.Title,
			ID:           song.ID,
			Duration:     duration,
			Uploader:     uploader,
			Source:       SourceAudiomack,
			Provider:     p.Name(),
			ThumbnailURL: song.Image,
		})
		if len(tracks) >= p.opts.maxResults() {
			break
		}
	}
	return tracks, nil
}

// ResolveStream asks the play endpoint for the signed stream URL of a song.
func (p *Audiomack) ResolveStream(ctx context.Context, trackID string) (string, error) {
	if !p.opts.allowed(p.base) {
		return "", fmt.Errorf("audiomack: %s throttled", hostOf(p.base))
	}

	reqURL := fmt.Sprintf("%s/song/%s/play", p.base, url.PathEscape(trackID))
	var resp struct {
		URL string `json:"url"`
	}
	if err := getJSON(ctx, p.client, reqURL, &resp); err != nil {
		return "", fmt.Errorf("audiomack: %w", err)
	}
	if resp.URL == "" {
		return "", ErrNoStream
	}
	return resp.URL, nil
}
