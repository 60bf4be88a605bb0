package aggregate

import (
	"context"
	"errors"
	"testing"

	"polytune/pkg/provider"
)

// fakeResolver resolves from a fixed table and records the IDs it was asked
// for.
type fakeResolver struct {
	name      string
	tag       string
	streams   map[string]string
	asked     []string
	rotations int
}

func (f *fakeResolver) Name() string      { return f.name }
func (f *fakeResolver) SourceTag() string { return f.tag }

func (f *fakeResolver) ResolveStream(_ context.Context, trackID string) (string, error) {
	f.asked = append(f.asked, trackID)
	if url, ok := f.streams[trackID]; ok {
		return url, nil
	}
	return "", provider.ErrNoStream
}

type rotatingResolver struct {
	fakeResolver
}

func (f *rotatingResolver) Rotate() { f.rotations++ }

func TestResolver_Resolve_ShortCircuitsOnFirstHit(t *testing.T) {
	first := &fakeResolver{name: "P1", tag: "PI", streams: map[string]string{"abc": "https://cdn/1"}}
	second := &fakeResolver{name: "P2", tag: "IV", streams: map[string]string{"abc": "https://cdn/2"}}

	r := NewResolver([]provider.StreamResolver{first, second}, Options{})

	url, err := r.Resolve(context.Background(), "abc", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if url != "https://cdn/1" {
		t.Errorf("Resolve() = %q, want the first provider's URL", url)
	}
	if len(second.asked) != 0 {
		t.Error("second provider was called after the first already resolved")
	}
}

func TestResolver_Resolve_HintMovesProviderToFront(t *testing.T) {
	piped := &fakeResolver{name: "Piped", tag: "PI"}
	audiomack := &fakeResolver{name: "Audiomack", tag: "AM", streams: map[string]string{"song-1": "https://cdn/am"}}

	r := NewResolver([]provider.StreamResolver{piped, audiomack}, Options{})

	url, err := r.Resolve(context.Background(), "song-1", "AM")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if url != "https://cdn/am" {
		t.Errorf("Resolve() = %q, want the hinted provider's URL", url)
	}
	if len(piped.asked) != 0 {
		t.Error("hinted resolution still called the unhinted provider first")
	}
}

func TestResolver_Resolve_HintIsAdvisory(t *testing.T) {
	hinted := &fakeResolver{name: "Hinted", tag: "AM"}
	fallback := &fakeResolver{name: "Fallback", tag: "PI", streams: map[string]string{"abc": "https://cdn/pi"}}

	r := NewResolver([]provider.StreamResolver{fallback, hinted}, Options{})

	url, err := r.Resolve(context.Background(), "abc", "AM")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if url != "https://cdn/pi" {
		t.Errorf("Resolve() = %q, want the fallback provider's URL", url)
	}
	if len(hinted.asked) != 1 {
		t.Errorf("hinted provider asked %d times, want 1 (tried first, then fell through)", len(hinted.asked))
	}
}

func TestResolver_Resolve_UnknownHintKeepsDeclarationOrder(t *testing.T) {
	first := &fakeResolver{name: "P1", tag: "PI", streams: map[string]string{"abc": "https://cdn/1"}}
	second := &fakeResolver{name: "P2", tag: "IV"}

	r := NewResolver([]provider.StreamResolver{first, second}, Options{})

	url, err := r.Resolve(context.Background(), "abc", "ZZ")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if url != "https://cdn/1" {
		t.Errorf("Resolve() = %q, want declaration-order resolution", url)
	}
}

func TestResolver_Resolve_RotatesFailingProvider(t *testing.T) {
	failing := &rotatingResolver{fakeResolver{name: "Failing", tag: "PI"}}
	working := &fakeResolver{name: "Working", tag: "IV", streams: map[string]string{"abc": "https://cdn/ok"}}

	r := NewResolver([]provider.StreamResolver{failing, working}, Options{})

	if _, err := r.Resolve(context.Background(), "abc", ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if failing.rotations != 1 {
		t.Errorf("failing provider rotated %d times, want 1", failing.rotations)
	}
}

func TestResolver_Resolve_DrivesRecorder(t *testing.T) {
	failing := &rotatingResolver{fakeResolver{name: "Failing", tag: "PI"}}
	working := &fakeResolver{name: "Working", tag: "IV", streams: map[string]string{"abc": "https://cdn/ok"}}
	rec := &captureRecorder{}

	r := NewResolver([]provider.StreamResolver{failing, working}, Options{Recorder: rec})

	if _, err := r.Resolve(context.Background(), "abc", ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !rec.contains(rec.resolves, "Failing/error") {
		t.Error("recorder missing the failed resolve event")
	}
	if !rec.contains(rec.resolves, "Working/ok") {
		t.Error("recorder missing the successful resolve event")
	}
	if !rec.contains(rec.rotations, "Failing") {
		t.Error("recorder missing the rotation event")
	}
}

func TestResolver_Resolve_ExhaustionWrapsErrNoStream(t *testing.T) {
	r := NewResolver([]provider.StreamResolver{
		&fakeResolver{name: "P1", tag: "PI"},
		&fakeResolver{name: "P2", tag: "IV"},
	}, Options{})

	_, err := r.Resolve(context.Background(), "nope", "")
	if !errors.Is(err, provider.ErrNoStream) {
		t.Errorf("Resolve() error = %v, want wrapped ErrNoStream", err)
	}
}
