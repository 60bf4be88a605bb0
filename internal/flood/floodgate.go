// Package flood rate-limits outbound requests per endpoint host so retry
// loops cannot hammer a single mirror instance.
package flood

import (
	"sync"
	"time"
)

const (
	// windowDuration is the fixed sliding window for the limit (1 minute).
	windowDuration = 60 * time.Second
	// cleanupInterval is how often idle host entries are swept.
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long a host entry may stay idle before removal.
	idleTimeout = 10 * time.Minute
)

// Gate enforces a per-host sliding-window request limit.
type Gate struct {
	limitPerMinute int
	entries        map[string]*hostEntry
	mu             sync.Mutex
	stopCleanup    chan struct{}
}

// hostEntry tracks request timestamps for one endpoint host.
type hostEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// NewGate creates a gate allowing limitPerMinute requests per host per
// minute and starts its background cleanup.
func NewGate(limitPerMinute int) *Gate {
	g := &Gate{
		limitPerMinute: limitPerMinute,
		entries:        make(map[string]*hostEntry),
		stopCleanup:    make(chan struct{}),
	}

	go g.cleanup()

	return g
}

// Stop stops the background cleanup goroutine.
func (g *Gate) Stop() {
	close(g.stopCleanup)
}

// Allow reports whether a request to the host may proceed now, and records
// it when allowed.
func (g *Gate) Allow(host string) bool {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.entries[host]
	if !exists {
		entry = &hostEntry{
			timestamps: make([]time.Time, 0, g.limitPerMinute+1),
		}
		g.entries[host] = entry
	}

	entry.lastSeen = now

	windowStart := now.Add(-windowDuration)
	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= g.limitPerMinute {
		return false
	}

	entry.timestamps = append(entry.timestamps, now)
	return true
}

func (g *Gate) cleanup() {
	g.sweep()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.stopCleanup:
			return
		}
	}
}

func (g *Gate) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-idleTimeout)
	for host, entry := range g.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(g.entries, host)
		}
	}
}

// Stats contains gate statistics for monitoring.
type Stats struct {
	ActiveHosts    int `json:"active_hosts"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}

// GetStats returns the gate's current statistics.
func (g *Gate) GetStats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Stats{
		ActiveHosts:    len(g.entries),
		LimitPerMinute: g.limitPerMinute,
		WindowSeconds:  int(windowDuration.Seconds()),
	}
}
