package provider

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// DefaultInvidiousInstances is the fallback endpoint pool used when the
// configuration supplies no invidious instances.
var DefaultInvidiousInstances = []string{
	"https://iv.melmac.space",
	"https://invidious.reallyaweso.me",
	"https://invidious.jing.rocks",
	"https://invidious.privacyredirect.com",
	"https://inv.us.projectsegfau.lt",
	"https://invidious.fdn.fr",
}

// DefaultPipedInstances is the fallback endpoint pool used when the
// configuration supplies no piped instances.
var DefaultPipedInstances = []string{
	"https://pipedapi.kavin.rocks",
	"https://pipedapi.adminforge.de",
	"https://api.piped.private.coffee",
}

// Throttle limits outbound requests per endpoint host. Allow reports whether
// a request to the given key may proceed right now.
type Throttle interface {
	Allow(key string) bool
}

// ring is an ordered, non-empty endpoint list with a rotation cursor. The
// cursor is deliberately never reset between calls: endpoints that keep
// failing drift to the back of the trial order over a session.
type ring struct {
	mu        sync.Mutex
	endpoints []string
	cur       int
}

// newRing builds a ring from the override list, falling back to defaults
// when the override is empty. The result is always non-empty as long as one
// of the two lists is.
func newRing(override, defaults []string) *ring {
	endpoints := override
	if len(endpoints) == 0 {
		endpoints = defaults
	}
	return &ring{endpoints: append([]string(nil), endpoints...)}
}

// current returns the endpoint the cursor points at.
func (r *ring) current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[r.cur]
}

// rotate advances the cursor cyclically.
func (r *ring) rotate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur = (r.cur + 1) % len(r.endpoints)
}

// len returns the number of endpoints in the ring.
func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints)
}

// all returns a copy of the endpoint list in declaration order.
func (r *ring) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.endpoints...)
}

// Options carries the shared construction inputs for concrete providers.
// Zero values are fully usable: default endpoint pools, a fresh HTTP client
// with the default timeout, no throttle.
type Options struct {
	// Instances overrides the provider's default endpoint pool.
	Instances []string
	// Client is the HTTP client used for every request. When nil a client
	// with DefaultRequestTimeout is created.
	Client *http.Client
	// Gate throttles outbound requests per endpoint host when non-nil.
	Gate Throttle
	// MaxResults caps how many tracks a single search returns. Zero means
	// the provider default.
	MaxResults int
}

// defaultMaxResults caps search output when Options.MaxResults is zero.
const defaultMaxResults = 10

func (o Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return NewHTTPClient(DefaultRequestTimeout)
}

func (o Options) maxResults() int {
	if o.MaxResults > 0 {
		return o.MaxResults
	}
	return defaultMaxResults
}

// allowed consults the optional throttle for the given endpoint.
func (o Options) allowed(endpoint string) bool {
	if o.Gate == nil {
		return true
	}
	return o.Gate.Allow(hostOf(endpoint))
}

// ProbeResult describes one endpoint health probe.
type ProbeResult struct {
	Endpoint string
	Latency  time.Duration
	Err      error
}

// Probe issues a lightweight search request against every given probe URL
// and reports per-endpoint latency or failure. Endpoints and probe URLs must
// be parallel slices.
func Probe(ctx context.Context, client *http.Client, endpoints, probeURLs []string) []ProbeResult {
	results := make([]ProbeResult, 0, len(endpoints))
	for i, endpoint := range endpoints {
		start := time.Now()
		var payload interface{}
		err := getJSON(ctx, client, probeURLs[i], &payload)
		results = append(results, ProbeResult{
			Endpoint: endpoint,
			Latency:  time.Since(start),
			Err:      err,
		})
	}
	return results
}
