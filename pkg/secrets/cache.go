package secrets

import (
	"sync"
	"time"
)

// CacheConfig configures the manager's secret cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration

	// MaxSize caps the number of cached secrets. Zero means no cap.
	MaxSize int
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Cache holds resolved secrets for a TTL.
type Cache struct {
	config  CacheConfig
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates a cache with the given configuration.
func NewCache(config CacheConfig) *Cache {
	return &Cache{
		config:  config,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns a cached value that has not expired.
func (c *Cache) Get(key string) (string, bool) {
	if !c.config.Enabled {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

// Set stores a value. When the cache is full the entry closest to expiry
// is evicted.
func (c *Cache) Set(key, value string) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.config.MaxSize > 0 && len(c.entries) >= c.config.MaxSize {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.expiresAt.Before(oldest) {
				oldestKey, oldest = k, e.expiresAt
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(c.config.TTL),
	}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
