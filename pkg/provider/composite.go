package provider

import (
	"context"
	"fmt"
	"strings"

	"polytune/pkg/fuzzy"
)

// Direction is one curated gallery entry.
type Direction struct {
	ID    string
	Query string
}

// DefaultDirections is the curated gallery shipped with the player.
var DefaultDirections = []Direction{
	{ID: "lofi", Query: "lofi hip hop beats to relax"},
	{ID: "jazz", Query: "jazz music for work"},
	{ID: "piano", Query: "classical piano peaceful"},
	{ID: "ambient", Query: "ambient electronic music"},
	{ID: "folk", Query: "indie folk acoustic"},
	{ID: "synthwave", Query: "synthwave retrowave"},
	{ID: "house", Query: "chill house music"},
	{ID: "meditation", Query: "meditation nature sounds"},
	{ID: "rock", Query: "rock classics 80s 90s"},
	{ID: "deephouse", Query: "deep house mix"},
}

// Gallery is a composite provider serving the curated direction gallery. It
// performs no network calls of its own: each search delegates to a fixed
// priority list of concrete searchers and returns the first non-empty result
// set, re-tagged with gallery provenance.
//
// Gallery does not resolve streams. Its records carry IDs from whichever
// backend produced them, so resolution goes through the normal resolver
// chain instead.
type Gallery struct {
	backends   []Searcher
	directions []Direction
}

// NewGallery creates a gallery provider over the given backends. A nil
// directions slice uses DefaultDirections.
func NewGallery(backends []Searcher, directions []Direction) *Gallery {
	if directions == nil {
		directions = DefaultDirections
	}
	return &Gallery{backends: backends, directions: directions}
}

// Name returns the human-readable provider name.
func (g *Gallery) Name() string { return "Gallery" }

// SourceTag returns the gallery composite tag.
func (g *Gallery) SourceTag() string { return SourceGallery }

// Directions returns the curated gallery in declaration order.
func (g *Gallery) Directions() []Direction {
	return append([]Direction(nil), g.directions...)
}

// Search accepts a direction ID (or free text, matched against direction
// queries) and delegates the direction's query to the backends in priority
// order, returning the first non-empty set.
func (g *Gallery) Search(ctx context.Context, query string) ([]Track, error) {
	dir := g.lookup(query)

	for _, backend := range g.backends {
		tracks, err := backend.Search(ctx, dir.Query)
		if err != nil || len(tracks) == 0 {
			continue
		}
		for i := range tracks {
			tracks[i].Source = SourceGallery
			tracks[i].Provider = g.Name()
			tracks[i].GalleryID = dir.ID
			tracks[i].Query = dir.Query
		}
		return tracks, nil
	}
	return nil, fmt.Errorf("gallery: no backend returned results for %q", dir.Query)
}

func (g *Gallery) lookup(query string) Direction {
	needle := strings.ToLower(strings.TrimSpace(query))
	for _, dir := range g.directions {
		if needle == strings.ToLower(dir.ID) {
			return dir
		}
	}
	for _, dir := range g.directions {
		if needle == strings.ToLower(dir.Query) {
			return dir
		}
	}
	// Unknown entries search as-is so the gallery stays usable with ad-hoc
	// directions from the shell.
	return Direction{ID: needle, Query: query}
}

// similarSeedWords is how many leading title words seed a similarity query
// when the uploader is unknown.
const similarSeedWords = 3

// Similar is a composite provider answering "more like this" requests. Like
// Gallery it owns no network calls and delegates to concrete searchers.
type Similar struct {
	backends []Searcher
}

// NewSimilar creates a similarity provider over the given backends.
func NewSimilar(backends []Searcher) *Similar {
	return &Similar{backends: backends}
}

// Name returns the human-readable provider name.
func (s *Similar) Name() string { return "Similar" }

// SourceTag returns the similarity composite tag.
func (s *Similar) SourceTag() string { return SourceSimilar }

// Search treats the query as seed title text, normalizes it into a
// similarity query and delegates to the backends in priority order.
func (s *Similar) Search(ctx context.Context, seed string) ([]Track, error) {
	return s.search(ctx, SimilarQuery(Track{Title: seed}), seed)
}

// SearchTrack builds the similarity query from a full seed track, preferring
// the uploader when known.
func (s *Similar) SearchTrack(ctx context.Context, seed Track) ([]Track, error) {
	return s.search(ctx, SimilarQuery(seed), seed.Title)
}

func (s *Similar) search(ctx context.Context, query, seed string) ([]Track, error) {
	for _, backend := range s.backends {
		tracks, err := backend.Search(ctx, query)
		if err != nil || len(tracks) == 0 {
			continue
		}
		for i := range tracks {
			tracks[i].Source = SourceSimilar
			tracks[i].Provider = s.Name()
			tracks[i].Query = seed
		}
		return tracks, nil
	}
	return nil, fmt.Errorf("similar: no backend returned results for %q", query)
}

// SimilarQuery derives the delegated search query from a seed track. A known
// uploader seeds "<uploader> similar music"; otherwise the leading words of
// the decoration-stripped title stand in.
func SimilarQuery(seed Track) string {
	if seed.Uploader != "" && seed.Uploader != UnknownUploader {
		return fuzzy.Normalize(seed.Uploader + " similar music")
	}
	cleaned := fuzzy.Normalize(fuzzy.StripDecorations(seed.Title))
	return fuzzy.LeadingWords(cleaned, similarSeedWords)
}
