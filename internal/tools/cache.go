package tools

import (
	"sync"
	"time"
)

type cacheEntry struct {
	v   any
	exp time.Time
}

// TTLCache is a small concurrency-safe cache with per-entry expiry. Grounding
// lookups for the same topic are frequent across simulation runs, so cached
// summaries avoid re-fetching.
type TTLCache struct {
	mu sync.RWMutex
	m  map[string]cacheEntry
}

// NewTTLCache creates an empty cache.
func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]cacheEntry)}
}

// Get returns the value for key if present and not expired.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.v, true
}

// Set stores a value. A non-positive ttl means the entry never expires.
func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = cacheEntry{v: v, exp: exp}
	c.mu.Unlock()
}
