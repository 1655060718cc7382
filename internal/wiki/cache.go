package wiki

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache holds search results for a fixed time-to-live. It is safe for concurrent access.
type Cache struct {
	items *gocache.Cache
}

// NewCache constructs an empty Cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	cleanup := ttl
	if cleanup <= 0 || cleanup > time.Hour {
		cleanup = time.Hour
	}
	return &Cache{items: gocache.New(ttl, cleanup)}
}

// Set stores results under key with the default time-to-live.
func (c *Cache) Set(key string, results []Result) {
	c.items.SetDefault(key, results)
}

// Get retrieves non-expired results for key.
func (c *Cache) Get(key string) ([]Result, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	results, ok := v.([]Result)
	return results, ok
}

// Len reports the number of cached entries, expired ones included until the next cleanup.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
