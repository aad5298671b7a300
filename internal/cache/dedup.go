// Package cache provides the LRU-backed hash cache used by the deduplicating
// MBTiles writers to skip re-inserting payloads they have already stored.
package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
)

// DedupCache remembers recently written content hashes. A hit means the
// payload row already exists and only the index row needs writing.
type DedupCache struct {
	cache *lru.Cache[string, struct{}]

	// Metrics (atomic counters for thread-safety)
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats represents cache statistics
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"` // Percentage
}

// NewDedupCache creates a new LRU dedup cache.
func NewDedupCache(maxItems int) (*DedupCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("maxItems must be positive, got %d", maxItems)
	}
	cache, err := lru.New[string, struct{}](maxItems)
	if err != nil {
		return nil, err
	}
	log.Debugf("Initialized dedup cache: max_items=%d", maxItems)
	return &DedupCache{cache: cache}, nil
}

// Seen reports whether the hash was recorded recently and records it if not.
func (dc *DedupCache) Seen(hash string) bool {
	if _, ok := dc.cache.Get(hash); ok {
		dc.hits.Add(1)
		return true
	}
	dc.misses.Add(1)
	dc.cache.Add(hash, struct{}{})
	return false
}

// Clear removes all items from cache
func (dc *DedupCache) Clear() {
	dc.cache.Purge()
}

// Stats returns current cache statistics
func (dc *DedupCache) Stats() Stats {
	hits := dc.hits.Load()
	misses := dc.misses.Load()
	total := hits + misses

	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100.0
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Size:    dc.cache.Len(),
		HitRate: hitRate,
	}
}
