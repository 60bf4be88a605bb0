package aggregate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"polytune/pkg/provider"
)

// Resolver turns a track ID into a playable URL by trying resolve-capable
// providers sequentially. Resolution is usually followed by an immediate
// playback attempt, so it issues only as many remote calls as needed instead
// of fanning out.
type Resolver struct {
	chain    []provider.StreamResolver
	logger   *zap.Logger
	recorder Recorder
}

// NewResolver creates a resolver over the given chain. Declaration order is
// the default trial order.
func NewResolver(chain []provider.StreamResolver, opts Options) *Resolver {
	return &Resolver{
		chain:    chain,
		logger:   opts.logger(),
		recorder: opts.recorder(),
	}
}

// Resolve tries each resolve-capable provider until one yields a URL.
//
// Ordering policy: providers whose source tag matches the advisory hint are
// moved to the front; the rest keep declaration order. The hint is never
// authoritative: when the hinted provider cannot resolve the ID, the
// remaining chain is still tried.
//
// A provider failure rotates that provider's endpoint ring (when it has one)
// and moves on. After the whole chain is exhausted the error wraps
// provider.ErrNoStream.
func (r *Resolver) Resolve(ctx context.Context, trackID, sourceHint string) (string, error) {
	for _, candidate := range r.order(sourceHint) {
		streamURL, err := candidate.ResolveStream(ctx, trackID)
		if err == nil && streamURL != "" {
			r.recorder.RecordResolve(candidate.Name(), "ok")
			return streamURL, nil
		}

		r.logger.Debug("provider resolve failed",
			zap.String("provider", candidate.Name()),
			zap.String("trackId", trackID),
			zap.Error(err))
		r.recorder.RecordResolve(candidate.Name(), "error")
		if rotator, ok := candidate.(provider.Rotator); ok {
			rotator.Rotate()
			r.recorder.RecordRotation(candidate.Name())
		}
	}

	return "", fmt.Errorf("resolve %q: %w", trackID, provider.ErrNoStream)
}

// order returns the trial order for the given hint.
func (r *Resolver) order(sourceHint string) []provider.StreamResolver {
	if sourceHint == "" {
		return r.chain
	}

	ordered := make([]provider.StreamResolver, 0, len(r.chain))
	for _, candidate := range r.chain {
		if candidate.SourceTag() == sourceHint {
			ordered = append(ordered, candidate)
		}
	}
	if len(ordered) == 0 {
		return r.chain
	}
	for _, candidate := range r.chain {
		if candidate.SourceTag() != sourceHint {
			ordered = append(ordered, candidate)
		}
	}
	return ordered
}
