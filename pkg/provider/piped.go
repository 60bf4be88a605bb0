package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Piped searches and resolves streams through the piped mirror network. Every
// request retries across the instance ring, rotating after each failure,
// until one instance answers or all have been tried once.
type Piped struct {
	opts   Options
	client *http.Client
	ring   *ring
}

// NewPiped creates a piped provider. An empty Options value uses the default
// instance pool and timeouts.
func NewPiped(opts Options) *Piped {
	return &Piped{
		opts:   opts,
		client: opts.client(),
		ring:   newRing(opts.Instances, DefaultPipedInstances),
	}
}

// Name returns the human-readable provider name.
func (p *Piped) Name() string { return "Piped" }

// SourceTag returns the piped family tag.
func (p *Piped) SourceTag() string { return SourcePiped }

// Rotate advances to the next instance.
func (p *Piped) Rotate() { p.ring.rotate() }

// Endpoints returns the instance pool in declaration order.
func (p *Piped) Endpoints() []string { return p.ring.all() }

// ProbeURL returns the health-probe search URL for an instance.
func (p *Piped) ProbeURL(endpoint string) string {
	return endpoint + "/search?q=test&filter=music_songs"
}

type pipedSearchResponse struct {
	Items []pipedItem `json:"items"`
}

type pipedItem struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Duration     int    `json:"duration"`
	UploaderName string `json:"uploaderName"`
	Thumbnail    string `json:"thumbnail"`
}

// Search queries the music_songs filter of the current instance, rotating on
// failure until an instance answers.
func (p *Piped) Search(ctx context.Context, query string) ([]Track, error) {
	var lastErr error
	for attempt := 0; attempt < p.ring.len(); attempt++ {
		instance := p.ring.current()
		if !p.opts.allowed(instance) {
			lastErr = fmt.Errorf("instance %s throttled", hostOf(instance))
			p.ring.rotate()
			continue
		}

		reqURL := fmt.Sprintf("%s/search?q=%s&filter=music_songs", instance, url.QueryEscape(query))
		var resp pipedSearchResponse
		if err := getJSON(ctx, p.client, reqURL, &resp); err != nil {
			lastErr = fmt.Errorf("instance %s: %w", hostOf(instance), err)
			p.ring.rotate()
			continue
		}

		return p.normalize(resp.Items), nil
	}
	return nil, fmt.Errorf("piped: all %d instances failed: %w", p.ring.len(), lastErr)
}

func (p *Piped) normalize(items []pipedItem) []Track {
	tracks := make([]Track, 0, len(items))
	for _, item := range items {
		id := pipedVideoID(item.URL)
		if item.Title == "" || id == "" {
			continue
		}
		uploader := item.UploaderName
		if uploader == "" {
			uploader = UnknownUploader
		}
		duration := item.Duration
		if duration < 0 {
			duration = 0 // livestreams report -1
		}
		tracks = append(tracks, Track{
			Title:        item.Title,
			ID:           id,
			Duration:     duration,
			Uploader:     uploader,
			Source:       SourcePiped,
			Provider:     p.Name(),
			ThumbnailURL: item.Thumbnail,
		})
		if len(tracks) >= p.opts.maxResults() {
			break
		}
	}
	return tracks
}

// pipedVideoID extracts the video ID from piped's relative "/watch?v=..."
// result URLs.
func pipedVideoID(rawURL string) string {
	if idx := strings.Index(rawURL, "v="); idx >= 0 {
		id := rawURL[idx+2:]
		if amp := strings.IndexByte(id, '&'); amp >= 0 {
			id = id[:amp]
		}
		return id
	}
	return strings.TrimPrefix(strings.Trim(rawURL, "/"), "watch/")
}

type pipedStreamsResponse struct {
	AudioStreams []pipedAudioStream `json:"audioStreams"`
}

type pipedAudioStream struct {
	URL     string `json:"url"`
	Bitrate int    `json:"bitrate"`
}

// ResolveStream fetches the stream descriptors for a video ID and returns
// the highest-bitrate audio-only URL.
func (p *Piped) ResolveStream(ctx context.Context, trackID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < p.ring.len(); attempt++ {
		instance := p.ring.current()
		if !p.opts.allowed(instance) {
			lastErr = fmt.Errorf("instance %s throttled", hostOf(instance))
			p.ring.rotate()
			continue
		}

		reqURL := fmt.Sprintf("%s/streams/%s", instance, url.PathEscape(trackID))
		var resp pipedStreamsResponse
		if err := getJSON(ctx, p.client, reqURL, &resp); err != nil {
			lastErr = fmt.Errorf("instance %s: %w", hostOf(instance), err)
			p.ring.rotate()
			continue
		}

		if len(resp.AudioStreams) == 0 {
			return "", ErrNoStream
		}
		streams := append([]pipedAudioStream(nil), resp.AudioStreams...)
		sort.SliceStable(streams, func(i, j int) bool {
			return streams[i].Bitrate > streams[j].Bitrate
		})
		if streams[0].URL == "" {
			return "", ErrNoStream
		}
		return streams[0].URL, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no instances configured")
	}
	return "", fmt.Errorf("piped: all %d instances failed: %w", p.ring.len(), lastErr)
}
