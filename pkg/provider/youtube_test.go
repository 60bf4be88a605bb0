package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const youtubeSearchFixture = `{
  "contents": {
    "twoColumnSearchResultsRenderer": {
      "primaryContents": {
        "sectionListRenderer": {
          "contents": [
            {
              "itemSectionRenderer": {
                "contents": [
                  {
                    "videoRenderer": {
                      "videoId": "vid1",
                      "title": {"runs": [{"text": "First Song"}]},
                      "lengthText": {"simpleText": "3:05"},
                      "ownerText": {"runs": [{"text": "Artist One"}]},
                      "thumbnail": {"thumbnails": [{"url": "https://thumbs/vid1.jpg"}]}
                    }
                  },
                  {
                    "shelfRenderer": {"title": {"simpleText": "People also watched"}}
                  },
                  {
                    "videoRenderer": {
                      "videoId": "vid2",
                      "title": {"runs": [{"text": "Second Song"}]},
                      "lengthText": {"simpleText": "1:02:33"},
                      "ownerText": {"runs": [{"text": ""}]}
                    }
                  },
                  {
                    "videoRenderer": {
                      "videoId": "",
                      "title": {"runs": [{"text": "Broken"}]}
                    }
                  }
                ]
              }
            }
          ]
        }
      }
    }
  }
}`

func TestYouTube_Search_WalksRendererTree(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtubei/v1/search" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(youtubeSearchFixture))
	}))
	defer server.Close()

	p := NewYouTube(Options{Instances: []string{server.URL}})
	tracks, err := p.Search(context.Background(), "test")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(tracks) != 2 {
		t.Fatalf("Search() returned %d tracks, want 2 (non-video renderers skipped)", len(tracks))
	}

	first := tracks[0]
	if first.ID != "vid1" || first.Title != "First Song" {
		t.Errorf("first track = %+v, want vid1/First Song", first)
	}
	if first.Duration != 185 {
		t.Errorf("Duration = %d, want 185 (parsed from \"3:05\")", first.Duration)
	}
	if first.Uploader != "Artist One" {
		t.Errorf("Uploader = %q, want Artist One", first.Uploader)
	}
	if first.Source != SourceYouTube {
		t.Errorf("Source = %q, want %q", first.Source, SourceYouTube)
	}
	if first.ThumbnailURL != "https://thumbs/vid1.jpg" {
		t.Errorf("ThumbnailURL = %q", first.ThumbnailURL)
	}

	second := tracks[1]
	if second.Duration != 3753 {
		t.Errorf("Duration = %d, want 3753 (parsed from \"1:02:33\")", second.Duration)
	}
	if second.Uploader != UnknownUploader {
		t.Errorf("empty owner = %q, want %q", second.Uploader, UnknownUploader)
	}
}

func TestYouTube_Search_MalformedPayloadDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"contents":{"somethingElse":{}}}`))
	}))
	defer server.Close()

	p := NewYouTube(Options{Instances: []string{server.URL}})
	tracks, err := p.Search(context.Background(), "test")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("Search() = %v, want empty for unrecognized payload", tracks)
	}
}

func TestYouTube_Search_RemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewYouTube(Options{Instances: []string{server.URL}})
	if _, err := p.Search(context.Background(), "test"); err == nil {
		t.Error("Search() expected error on non-2xx response")
	}
}

func TestYouTube_KeyExtractionFromHomepage(t *testing.T) {
	const extracted = "AIzaExtractedKey_0123456789abcdefghij"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><script>ytcfg.set({"INNERTUBE_API_KEY":"` + extracted + `"});</script></html>`))
	}))
	defer server.Close()

	p := NewYouTube(Options{Instances: []string{server.URL}})

	if got := p.key(context.Background()); got != extracted {
		t.Errorf("key() = %q, want %q", got, extracted)
	}
	// Cached for the provider lifetime.
	if got := p.key(context.Background()); got != extracted {
		t.Errorf("cached key() = %q, want %q", got, extracted)
	}
}

func TestYouTube_KeyFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	p := NewYouTube(Options{Instances: []string{server.URL}})

	if got := p.key(context.Background()); got != youtubeFallbackAPIKey {
		t.Errorf("key() = %q, want the fallback key", got)
	}
}

func TestYouTube_Search_MaxResultsCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(youtubeSearchFixture))
	}))
	defer server.Close()

	p := NewYouTube(Options{Instances: []string{server.URL}, MaxResults: 1})
	tracks, err := p.Search(context.Background(), "test")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Errorf("Search() returned %d tracks, want 1", len(tracks))
	}
}
