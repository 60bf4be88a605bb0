package provider

import (
	"context"
	"errors"
	"testing"
)

// stubSearcher is a canned-response backend for composite tests.
type stubSearcher struct {
	name    string
	tracks  []Track
	err     error
	queries []string
}

func (s *stubSearcher) Name() string      { return s.name }
func (s *stubSearcher) SourceTag() string { return "ST" }

func (s *stubSearcher) Search(_ context.Context, query string) ([]Track, error) {
	s.queries = append(s.queries, query)
	return s.tracks, s.err
}

func TestGallery_Search_FirstNonEmptyBackendWins(t *testing.T) {
	failing := &stubSearcher{name: "down", err: errors.New("unreachable")}
	empty := &stubSearcher{name: "dry"}
	serving := &stubSearcher{name: "up", tracks: []Track{
		{Title: "Lofi Mix", ID: "v1", Source: SourcePiped, Provider: "Piped"},
	}}
	ignored := &stubSearcher{name: "never", tracks: []Track{{Title: "X", ID: "v2"}}}

	g := NewGallery([]Searcher{failing, empty, serving, ignored}, nil)

	tracks, err := g.Search(context.Background(), "lofi")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Search() returned %d tracks, want 1", len(tracks))
	}

	got := tracks[0]
	if got.Source != SourceGallery || got.Provider != "Gallery" {
		t.Errorf("provenance = %q/%q, want gallery re-tagging", got.Source, got.Provider)
	}
	if got.GalleryID != "lofi" {
		t.Errorf("GalleryID = %q, want lofi", got.GalleryID)
	}
	if got.Query != "lofi hip hop beats to relax" {
		t.Errorf("Query = %q, want the direction's query", got.Query)
	}
	if len(ignored.queries) != 0 {
		t.Error("backend after the first non-empty one was still called")
	}
}

func TestGallery_Lookup(t *testing.T) {
	g := NewGallery(nil, nil)

	tests := []struct {
		name      string
		query     string
		wantID    string
		wantQuery string
	}{
		{
			name:      "by direction ID",
			query:     "jazz",
			wantID:    "jazz",
			wantQuery: "jazz music for work",
		},
		{
			name:      "ID match is case-insensitive",
			query:     "  SYNTHWAVE ",
			wantID:    "synthwave",
			wantQuery: "synthwave retrowave",
		},
		{
			name:      "by direction query text",
			query:     "deep house mix",
			wantID:    "deephouse",
			wantQuery: "deep house mix",
		},
		{
			name:      "ad-hoc direction searches as-is",
			query:     "vaporwave aesthetics",
			wantID:    "vaporwave aesthetics",
			wantQuery: "vaporwave aesthetics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := g.lookup(tt.query)
			if dir.ID != tt.wantID || dir.Query != tt.wantQuery {
				t.Errorf("lookup(%q) = %+v, want %s/%s", tt.query, dir, tt.wantID, tt.wantQuery)
			}
		})
	}
}

func TestGallery_Search_AllBackendsEmpty(t *testing.T) {
	g := NewGallery([]Searcher{&stubSearcher{name: "dry"}}, nil)

	if _, err := g.Search(context.Background(), "lofi"); err == nil {
		t.Error("Search() expected error when every backend comes back empty")
	}
}

func TestGallery_DirectionsIsACopy(t *testing.T) {
	g := NewGallery(nil, nil)

	dirs := g.Directions()
	if len(dirs) == 0 {
		t.Fatal("Directions() is empty")
	}
	dirs[0].Query = "mutated"

	if g.Directions()[0].Query == "mutated" {
		t.Error("mutating the returned slice leaked into the gallery")
	}
}

func TestSimilarQuery(t *testing.T) {
	tests := []struct {
		name     string
		seed     Track
		expected string
	}{
		{
			name:     "known uploader",
			seed:     Track{Title: "Thriller", Uploader: "Michael Jackson"},
			expected: "michael jackson similar music",
		},
		{
			name:     "unknown uploader uses leading title words",
			seed:     Track{Title: "Midnight City Lights Tokyo Drive", Uploader: UnknownUploader},
			expected: "midnight city lights",
		},
		{
			name:     "decorations stripped before seeding",
			seed:     Track{Title: "Midnight City (Official Video) [HD]"},
			expected: "midnight city",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SimilarQuery(tt.seed); got != tt.expected {
				t.Errorf("SimilarQuery(%+v) = %q, want %q", tt.seed, got, tt.expected)
			}
		})
	}
}

func TestSimilar_SearchTrack_RetagsResults(t *testing.T) {
	backend := &stubSearcher{name: "up", tracks: []Track{
		{Title: "Billie Jean", ID: "v9", Source: SourceInvidious, Provider: "Invidious"},
	}}
	s := NewSimilar([]Searcher{backend})

	seed := Track{Title: "Thriller", Uploader: "Michael Jackson"}
	tracks, err := s.SearchTrack(context.Background(), seed)
	if err != nil {
		t.Fatalf("SearchTrack() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("SearchTrack() returned %d tracks, want 1", len(tracks))
	}

	got := tracks[0]
	if got.Source != SourceSimilar || got.Provider != "Similar" {
		t.Errorf("provenance = %q/%q, want similarity re-tagging", got.Source, got.Provider)
	}
	if got.Query != "Thriller" {
		t.Errorf("Query = %q, want the seed title", got.Query)
	}
	if len(backend.queries) != 1 || backend.queries[0] != "michael jackson similar music" {
		t.Errorf("delegated query = %v, want uploader-based similarity query", backend.queries)
	}
}
