package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Invidious searches and resolves streams through the invidious mirror
// network, with the same rotate-on-failure retry loop as Piped.
type Invidious struct {
	opts   Options
	client *http.Client
	ring   *ring
}

// NewInvidious creates an invidious provider.
func NewInvidious(opts Options) *Invidious {
	return &Invidious{
		opts:   opts,
		client: opts.client(),
		ring:   newRing(opts.Instances, DefaultInvidiousInstances),
	}
}

// Name returns the human-readable provider name.
func (p *Invidious) Name() string { return "Invidious" }

// SourceTag returns the invidious family tag.
func (p *Invidious) SourceTag() string { return SourceInvidious }

// Rotate advances to the next instance.
func (p *Invidious) Rotate() { p.ring.rotate() }

// Endpoints returns the instance pool in declaration order.
func (p *Invidious) Endpoints() []string { return p.ring.all() }

// ProbeURL returns the health-probe search URL for an instance.
func (p *Invidious) ProbeURL(endpoint string) string {
	return endpoint + "/api/v1/search?q=test&type=video"
}

type invidiousItem struct {
	Type            string `json:"type"`
	Title           string `json:"title"`
	VideoID         string `json:"videoId"`
	LengthSeconds   int    `json:"lengthSeconds"`
	Author          string `json:"author"`
	VideoThumbnails []struct {
		URL string `json:"url"`
	} `json:"videoThumbnails"`
}

// Search queries the video search API of the current instance, rotating on
// failure until an instance answers.
func (p *Invidious) Search(ctx context.Context, query string) ([]Track, error) {
	var lastErr error
	for attempt := 0; attempt < p.ring.len(); attempt++ {
		instance := p.ring.current()
		if !p.opts.allowed(instance) {
			lastErr = fmt.Errorf("instance %s throttled", hostOf(instance))
			p.ring.rotate()
			continue
		}

		reqURL := fmt.Sprintf("%s/api/v1/search?q=%s&type=video", instance, url.QueryEscape(query))
		var items []invidiousItem
		if err := getJSON(ctx, p.client, reqURL, &items); err != nil {
			lastErr = fmt.Errorf("instance %s: %w", hostOf(instance), err)
			p.ring.rotate()
			continue
		}

		return p.normalize(items), nil
	}
	return nil, fmt.Errorf("invidious: all %d instances failed: %w", p.ring.len(), lastErr)
}

func (p *Invidious) normalize(items []invidiousItem) []Track {
	tracks := make([]Track, 0, len(items))
	for _, item := range items {
		if item.Type != "" && item.Type != "video" {
			continue
		}
		if item.Title == "" || item.VideoID == "" {
			continue
		}
		uploader := item.Author
		if uploader == "" {
			uploader = UnknownUploader
		}
		thumbnail := ""
		if len(item.VideoThumbnails) > 0 {
			thumbnail = item.VideoThumbnails[0].URL
		}
		duration := item.LengthSeconds
		if duration < 0 {
			duration = 0
		}
		tracks = append(tracks, Track{
			Title:        item.Title,
			ID:           item.VideoID,
			Duration:     duration,
			Uploader:     uploader,
			Source:       SourceInvidious,
			Provider:     p.Name(),
			ThumbnailURL: thumbnail,
		})
		if len(tracks) >= p.opts.maxResults() {
			break
		}
	}
	return tracks
}

type invidiousVideoResponse struct {
	AdaptiveFormats []invidiousFormat `json:"adaptiveFormats"`
}

type invidiousFormat struct {
	URL     string `json:"url"`
	Type    string `json:"type"`
	Bitrate string `json:"bitrate"` // invidious serialises bitrate as a string
}

// ResolveStream fetches the video descriptor for an ID and returns the
// highest-bitrate audio-only adaptive format URL.
func (p *Invidious) ResolveStream(ctx context.Context, trackID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < p.ring.len(); attempt++ {
		instance := p.ring.current()
		if !p.opts.allowed(instance) {
			lastErr = fmt.Errorf("instance %s throttled", hostOf(instance))
			p.ring.rotate()
			continue
		}

		reqURL := fmt.Sprintf("%s/api/v1/videos/%s", instance, url.PathEscape(trackID))
		var resp invidiousVideoResponse
		if err := getJSON(ctx, p.client, reqURL, &resp); err != nil {
			lastErr = fmt.Errorf("instance %s: %w", hostOf(instance), err)
			p.ring.rotate()
			continue
		}

		audio := make([]invidiousFormat, 0, len(resp.AdaptiveFormats))
		for _, format := range resp.AdaptiveFormats {
			if strings.HasPrefix(format.Type, "audio") && format.URL != "" {
				audio = append(audio, format)
			}
		}
		if len(audio) == 0 {
			return "", ErrNoStream
		}
		sort.SliceStable(audio, func(i, j int) bool {
			return invidiousBitrate(audio[i].Bitrate) > invidiousBitrate(audio[j].Bitrate)
		})
		return audio[0].URL, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no instances configured")
	}
	return "", fmt.Errorf("invidious: all %d instances failed: %w", p.ring.len(), lastErr)
}

func invidiousBitrate(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
