// Package cache holds previously fetched page bodies for a bounded time so
// a refresh within the freshness window never touches the network.
package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long a fetched page body stays servable.
const DefaultTTL = 30 * time.Minute

type entry struct {
	body     string
	storedAt time.Time
}

// Cache is a concurrency-safe body store with lazy expiry: stale entries
// are never purged, only ignored on read and superseded on write.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// New returns a cache with the given TTL; ttl <= 0 uses DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the body for key if it was stored less than TTL ago.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return "", false
	}
	return e.body, true
}

// Put stores body under key, superseding any previous entry.
func (c *Cache) Put(key, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{body: body, storedAt: c.now()}
}

// Len reports the number of entries held, live or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// PageKey is the cache key for a numbered listings page.
func PageKey(pageNumber int) string {
	return fmt.Sprintf("page_%d", pageNumber)
}

// URLKey derives a bounded key for an arbitrary URL fetch. The key comes
// from a digest of the whole URL, so keys cannot grow unbounded and URLs
// sharing a long common prefix still get distinct keys.
func URLKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "custom_" + base64.RawURLEncoding.EncodeToString(sum[:])[:20]
}
