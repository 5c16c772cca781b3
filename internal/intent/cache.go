package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a model classification is reused.
const DefaultCacheTTL = 300 * time.Second

// Cache stores model classifications by content key.
type Cache interface {
	Get(key string) (map[string]any, bool)
	Set(key string, value map[string]any)
}

// CacheKey is the content hash of text.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	storedAt time.Time
	value    map[string]any
}

// TTLCache keeps entries until they are overwritten. Expiry is only checked
// on read; there is no sweep.
type TTLCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &TTLCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *TTLCache) Get(key string) (map[string]any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

func (c *TTLCache) Set(key string, value map[string]any) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{storedAt: c.now(), value: value}
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(string) (map[string]any, bool) { return nil, false }
func (NoopCache) Set(string, map[string]any)         {}
