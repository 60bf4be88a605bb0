// Package provider implements search and stream resolution against the
// external music services polytune aggregates over.
package provider

import (
	"context"
	"errors"
	"strings"
)

// Source tags identifying the provider family a track originated from.
const (
	SourceYouTube    = "YT"
	SourcePiped      = "PI"
	SourceInvidious  = "IV"
	SourceAudiomack  = "AM"
	SourceSoundCloud = "SC"
	SourceGallery    = "GA"
	SourceSimilar    = "SI"
)

// UnknownUploader is the sentinel used when a service omits the uploader.
const UnknownUploader = "Unknown"

// ErrNoStream is returned by stream resolution when every candidate source
// has been tried and none yielded a playable URL.
var ErrNoStream = errors.New("no playable stream found")

// Track is the normalized search result shared by every provider.
type Track struct {
	Title        string `json:"title"`
	ID           string `json:"trackId"`
	Duration     int    `json:"durationSeconds"` // 0 when the source omits it
	Uploader     string `json:"uploader"`
	Source       string `json:"sourceTag"`
	Provider     string `json:"providerName"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	GalleryID    string `json:"galleryId,omitempty"`
	Query        string `json:"originalQuery,omitempty"`
}

// Key returns the deduplication key for the track. Two tracks with the same
// key are the same track regardless of which provider returned them.
func (t Track) Key() string {
	return strings.ToLower(t.Title) + "\x00" + t.ID
}

// Searcher is implemented by providers that can answer free-text queries.
type Searcher interface {
	// Name returns the human-readable provider name.
	Name() string

	// SourceTag returns the short code identifying the provider family.
	SourceTag() string

	// Search queries the remote service and returns normalized tracks.
	Search(ctx context.Context, query string) ([]Track, error)
}

// StreamResolver is implemented by providers that can turn a track ID into a
// directly playable audio URL.
type StreamResolver interface {
	// Name returns the human-readable provider name.
	Name() string

	// SourceTag returns the short code identifying the provider family.
	SourceTag() string

	// ResolveStream returns a playable URL for the given track ID.
	ResolveStream(ctx context.Context, trackID string) (string, error)
}

// Rotator is implemented by providers backed by multiple interchangeable
// endpoints. Rotate advances to the next endpoint; it is called by callers as
// an instance-health signal after a failed search or resolution.
type Rotator interface {
	Rotate()
}
