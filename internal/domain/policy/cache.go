package policy

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// cacheMaxEntries bounds the cache; policy texts come from profiles and
// workspaces, so the working set is tiny. When full the cache resets
// rather than tracking recency.
const cacheMaxEntries = 64

// Cache memoizes parse results keyed by a fast hash of the policy text.
// Policy text is re-read on every guarded call, so parsing the same text
// repeatedly is the hot path.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]*ParseResult
}

// NewCache creates an empty parse cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[uint64]*ParseResult)}
}

// Parse returns the cached result for text, parsing on miss. The returned
// ParseResult is shared; callers must not mutate it.
func (c *Cache) Parse(text string) *ParseResult {
	key := xxhash.Sum64String(text)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	parsed := Parse(text)

	c.mu.Lock()
	if len(c.entries) >= cacheMaxEntries {
		c.entries = make(map[uint64]*ParseResult)
	}
	c.entries[key] = parsed
	c.mu.Unlock()
	return parsed
}
