package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sync"

	"github.com/tidwall/gjson"
)

const (
	soundcloudDefaultPageBase = "https://soundcloud.com"
	soundcloudDefaultAPIBase  = "https://api-v2.soundcloud.com"
	// soundcloudFallbackClientID is used when credential extraction from the
	// script bundles fails. Rotated occasionally by the service; extraction
	// is always attempted first.
	soundcloudFallbackClientID = "iZIs9mchVcX5lhVRyQGGAYlNPVldzAoX"
	// soundcloudMaxBundles bounds how many script bundles are scanned for
	// the embedded credential.
	soundcloudMaxBundles = 5
)

var (
	soundcloudHydrationRegex = regexp.MustCompile(`(?s)window\.__sc_hydration\s*=\s*(\[.*?\])\s*;`)
	soundcloudClientIDRegex  = regexp.MustCompile(`client_id\s*[:=]\s*"([A-Za-z0-9]{16,})"`)
)

// SoundCloud is the HTML-scraping fallback provider. Search scrapes the
// hydration blob embedded in the search results page; resolution goes
// through the v2 API with a session-scoped client credential extracted from
// the site's script bundles. Both are inherently coupled to the site's
// markup and fail closed on any parse surprise.
type SoundCloud struct {
	opts     Options
	client   *http.Client
	pageBase string
	apiBase  string

	credMu   sync.Mutex
	clientID string
}

// NewSoundCloud creates a soundcloud provider. Options.Instances may carry
// [pageBase, apiBase] overrides, used by tests.
func NewSoundCloud(opts Options) *SoundCloud {
	pageBase := soundcloudDefaultPageBase
	apiBase := soundcloudDefaultAPIBase
	if len(opts.Instances) > 0 {
		pageBase = opts.Instances[0]
	}
	if len(opts.Instances) > 1 {
		apiBase = opts.Instances[1]
	}
	return &SoundCloud{
		opts:     opts,
		client:   opts.client(),
		pageBase: pageBase,
		apiBase:  apiBase,
	}
}

// Name returns the human-readable provider name.
func (p *SoundCloud) Name() string { return "SoundCloud" }

// SourceTag returns the soundcloud family tag.
func (p *SoundCloud) SourceTag() string { return SourceSoundCloud }

// Search scrapes the embedded hydration JSON out of the search results page.
// Any parse surprise yields an empty result, never an error: the markup this
// depends on is not a contract.
func (p *SoundCloud) Search(ctx context.Context, query string) ([]Track, error) {
	if !p.opts.allowed(p.pageBase) {
		return nil, fmt.Errorf("soundcloud: %s throttled", hostOf(p.pageBase))
	}

	pageURL := fmt.Sprintf("%s/search/sounds?q=%s", p.pageBase, url.QueryEscape(query))
	page, err := fetchPage(ctx, p.client, pageURL)
	if err != nil {
		return nil, fmt.Errorf("soundcloud: %w", err)
	}

	matches := soundcloudHydrationRegex.FindStringSubmatch(page)
	if len(matches) < 2 {
		return nil, nil
	}

	return p.normalize(matches[1]), nil
}

func (p *SoundCloud) normalize(hydration string) []Track {
	parsed := gjson.Parse(hydration)
	if !parsed.IsArray() {
		return nil
	}

	tracks := make([]Track, 0, p.opts.maxResults())
	parsed.ForEach(func(_, entry gjson.Result) bool {
		if entry.Get("hydratable").String() != "sound" {
			return true
		}
		data := entry.Get("data")

		title := data.Get("title").String()
		id := data.Get("id").String()
		if title == "" || id == "" {
			return true
		}

		uploader := data.Get("user.username").String()
		if uploader == "" {
			uploader = UnknownUploader
		}

		tracks = append(tracks, Track{
			Title:        title,
			ID:           id,
			Duration:     int(data.Get("duration").Int() / 1000), // milliseconds upstream
			Uploader:     uploader,
			Source:       SourceSoundCloud,
			Provider:     p.Name(),
			ThumbnailURL: data.Get("artwork_url").String(),
		})
		return len(tracks) < p.opts.maxResults()
	})

	return tracks
}

// ResolveStream resolves a track ID to the progressive transcoding URL.
func (p *SoundCloud) ResolveStream(ctx context.Context, trackID string) (string, error) {
	if !p.opts.allowed(p.apiBase) {
		return "", fmt.Errorf("soundcloud: %s throttled", hostOf(p.apiBase))
	}

	clientID := p.credential(ctx)

	trackURL := fmt.Sprintf("%s/tracks/%s?client_id=%s", p.apiBase, url.PathEscape(trackID), clientID)
	body, err := fetchPage(ctx, p.client, trackURL)
	if err != nil {
		return "", fmt.Errorf("soundcloud: %w", err)
	}

	transcodingURL := ""
	gjson.Get(body, "media.transcodings").ForEach(func(_, t gjson.Result) bool {
		if t.Get("format.protocol").String() == "progressive" {
			transcodingURL = t.Get("url").String()
			return false
		}
		return true
	})
	if transcodingURL == "" {
		return "", ErrNoStream
	}

	streamURL := fmt.Sprintf("%s?client_id=%s", transcodingURL, clientID)
	var resolved struct {
		URL string `json:"url"`
	}
	if err := getJSON(ctx, p.client, streamURL, &resolved); err != nil {
		return "", fmt.Errorf("soundcloud: %w", err)
	}
	if resolved.URL == "" {
		return "", ErrNoStream
	}
	return resolved.URL, nil
}

// credential returns the session client_id, extracting it once per provider
// lifetime from the script bundles referenced by the homepage. Extraction
// failure falls back to the hardcoded credential and never surfaces.
func (p *SoundCloud) credential(ctx context.Context) string {
	p.credMu.Lock()
	defer p.credMu.Unlock()

	if p.clientID != "" {
		return p.clientID
	}

	p.clientID = soundcloudFallbackClientID
	page, err := fetchPage(ctx, p.client, p.pageBase+"/")
	if err != nil {
		return p.clientID
	}

	scripts := scriptSrcRegex.FindAllStringSubmatch(page, soundcloudMaxBundles)
	for _, script := range scripts {
		bundle, err := fetchPage(ctx, p.client, script[1])
		if err != nil {
			continue
		}
		if m := soundcloudClientIDRegex.FindStringSubmatch(bundle); len(m) == 2 {
			p.clientID = m[1]
			break
		}
	}
	return p.clientID
}
