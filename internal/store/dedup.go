// Package store provides a bounded seen-key set used to deduplicate merged
// search results, backed by a Bloom filter and an LRU index.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// KeySet records which deduplication keys have been seen. The Bloom filter
// answers the common miss cheaply; the exact map resolves its false
// positives. The LRU index supplies eviction order once capacity is reached.
type KeySet struct {
	keys  map[string]struct{}
	bloom *bloom.BloomFilter
	lru   *lru.Cache[string, struct{}]
	mu    sync.RWMutex
}

// NewKeySet creates a key set holding at most capacity keys with the given
// Bloom false positive rate.
func NewKeySet(capacity int, falsePositiveRate float64) *KeySet {
	if capacity <= 0 {
		capacity = 1
	}

	ks := &KeySet{
		keys:  make(map[string]struct{}),
		bloom: bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
	}
	// Eviction runs through the LRU's own callback so the exact map can
	// never disagree with the index about which key left. The Bloom filter
	// cannot forget evicted keys; its stale positives are resolved against
	// the exact map.
	cache, _ := lru.NewWithEvict[string, struct{}](capacity, func(key string, _ struct{}) {
		delete(ks.keys, key)
	})
	ks.lru = cache

	return ks
}

// Has reports whether the key has been seen.
func (ks *KeySet) Has(key string) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if !ks.bloom.TestString(key) {
		return false
	}
	_, exists := ks.keys[key]
	return exists
}

// Add records the key, evicting the oldest key at capacity. It reports
// whether the key was newly added.
func (ks *KeySet) Add(key string) bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, exists := ks.keys[key]; exists {
		return false
	}

	ks.keys[key] = struct{}{}
	ks.bloom.AddString(key)
	ks.lru.Add(key, struct{}{})
	return true
}

// Len returns the number of keys currently held.
func (ks *KeySet) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.keys)
}
