// Package aggregate orchestrates search fan-out and stream resolution across
// the configured providers.
package aggregate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"polytune/internal/store"
	"polytune/pkg/provider"
)

// dedupFalsePositiveRate is the Bloom false positive rate of the per-search
// seen-key set.
const dedupFalsePositiveRate = 0.001

// Recorder receives engine events for metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	RecordSearch(providerName, status string)
	RecordResolve(providerName, status string)
	RecordRotation(providerName string)
	ObserveSearchDuration(providerName string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordSearch(string, string)                 {}
func (nopRecorder) RecordResolve(string, string)                {}
func (nopRecorder) RecordRotation(string)                       {}
func (nopRecorder) ObserveSearchDuration(string, time.Duration) {}

// Options configures an Aggregator or Resolver. The zero value is usable.
type Options struct {
	// MaxResults caps the merged result list. Zero means no cap.
	MaxResults int
	// MaxDurationSeconds drops tracks with a known duration above the
	// limit. Zero disables the filter; unknown durations always pass.
	MaxDurationSeconds int
	// Logger receives provider failure diagnostics.
	Logger *zap.Logger
	// Recorder receives engine events for metrics.
	Recorder Recorder
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

func (o Options) recorder() Recorder {
	if o.Recorder != nil {
		return o.Recorder
	}
	return nopRecorder{}
}

// ProviderStatus reports one provider's contribution to a search.
type ProviderStatus struct {
	Tracks  int
	Elapsed time.Duration
	Err     error
}

// Report maps provider names to their per-search status, letting callers
// tell "no matches" apart from "every provider failed".
type Report map[string]ProviderStatus

// AllFailed reports whether every provider in the report errored.
func (r Report) AllFailed() bool {
	if len(r) == 0 {
		return false
	}
	for _, status := range r {
		if status.Err == nil {
			return false
		}
	}
	return true
}

// Aggregator fans a query out to every searcher concurrently and merges the
// results into one deduplicated list.
type Aggregator struct {
	searchers []provider.Searcher
	opts      Options
	logger    *zap.Logger
	recorder  Recorder
}

// New creates an aggregator over the given searchers. Declaration order
// determines merge order.
func New(searchers []provider.Searcher, opts Options) *Aggregator {
	return &Aggregator{
		searchers: searchers,
		opts:      opts,
		logger:    opts.logger(),
		recorder:  opts.recorder(),
	}
}

// Search queries all providers concurrently and returns the merged,
// deduplicated result list plus a per-provider report. Provider failures are
// absorbed here: a failing provider contributes nothing and, when it rotates
// endpoints, gets rotated once more as a health signal. An empty list with a
// fully failed report means total failure; an empty list otherwise means no
// matches.
func (a *Aggregator) Search(ctx context.Context, query string) ([]provider.Track, Report) {
	batches := make([][]provider.Track, len(a.searchers))
	report := make(Report, len(a.searchers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, searcher := range a.searchers {
		wg.Add(1)
		go func(i int, s provider.Searcher) {
			defer wg.Done()

			start := time.Now()
			tracks, err := s.Search(ctx, query)
			elapsed := time.Since(start)
			a.recorder.ObserveSearchDuration(s.Name(), elapsed)

			if err != nil {
				a.logger.Warn("provider search failed",
					zap.String("provider", s.Name()),
					zap.String("query", query),
					zap.Error(err))
				a.recorder.RecordSearch(s.Name(), "error")
				if rotator, ok := s.(provider.Rotator); ok {
					rotator.Rotate()
					a.recorder.RecordRotation(s.Name())
				}
				mu.Lock()
				report[s.Name()] = ProviderStatus{Elapsed: elapsed, Err: err}
				mu.Unlock()
				return
			}

			for j := range tracks {
				if tracks[j].Provider == "" {
					tracks[j].Provider = s.Name()
				}
			}

			a.recorder.RecordSearch(s.Name(), "ok")
			batches[i] = tracks
			mu.Lock()
			report[s.Name()] = ProviderStatus{Tracks: len(tracks), Elapsed: elapsed}
			mu.Unlock()
		}(i, searcher)
	}
	wg.Wait()

	flat := make([]provider.Track, 0)
	for _, batch := range batches {
		flat = append(flat, batch...)
	}

	return a.Merge(flat), report
}

// Merge deduplicates tracks by their (lowercased title, id) key, keeping the
// first occurrence, and applies the duration filter and result cap. The seen
// set is sized to the input so no key can be evicted mid-merge. Merge is
// idempotent on its own output.
func (a *Aggregator) Merge(tracks []provider.Track) []provider.Track {
	seen := store.NewKeySet(len(tracks), dedupFalsePositiveRate)

	merged := make([]provider.Track, 0, len(tracks))
	for _, track := range tracks {
		if track.Title == "" || track.ID == "" {
			continue
		}
		if a.opts.MaxDurationSeconds > 0 && track.Duration > a.opts.MaxDurationSeconds {
			continue
		}
		if !seen.Add(track.Key()) {
			continue
		}
		merged = append(merged, track)
		if a.opts.MaxResults > 0 && len(merged) >= a.opts.MaxResults {
			break
		}
	}
	return merged
}
