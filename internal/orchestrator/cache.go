package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/stilya/stilya/internal/models"
)

// CacheConfig bounds the recommendation cache
type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
	TrimTo     int
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		TTL:        time.Hour,
		MaxEntries: 1000,
		TrimTo:     800,
	}
}

type cacheEntry struct {
	userID    string
	response  *models.OrchestratorResponse
	createdAt time.Time
}

// Cache holds synthesized responses keyed by request fingerprint. Entries
// expire after the TTL; when the entry count passes MaxEntries the oldest
// are dropped until TrimTo remain.
type Cache struct {
	entries map[string]*cacheEntry
	config  *CacheConfig
	now     func() time.Time
	mu      sync.RWMutex

	hits   int64
	misses int64
}

// NewCache creates a cache using the wall clock
func NewCache(config *CacheConfig) *Cache {
	return newCacheWithClock(config, time.Now)
}

func newCacheWithClock(config *CacheConfig, now func() time.Time) *Cache {
	if config == nil {
		config = DefaultCacheConfig()
	}
	if config.TrimTo <= 0 || config.TrimTo > config.MaxEntries {
		config.TrimTo = config.MaxEntries
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		config:  config,
		now:     now,
	}
}

// Get returns a deep copy of a live entry and records a hit or miss
func (c *Cache) Get(key string) (*models.OrchestratorResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().Sub(e.createdAt) >= c.config.TTL {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.response.Clone(), true
}

// Set stores a response; later writes for the same key win
func (c *Cache) Set(key, userID string, resp *models.OrchestratorResponse) {
	stored := resp.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{userID: userID, response: stored, createdAt: c.now()}
	if len(c.entries) > c.config.MaxEntries {
		c.trim()
	}
}

// trim keeps the TrimTo newest entries
func (c *Cache) trim() {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].createdAt.Before(c.entries[keys[j]].createdAt)
	})
	for _, k := range keys[:len(keys)-c.config.TrimTo] {
		delete(c.entries, k)
	}
}

// InvalidateUser drops every entry of userID and returns how many were removed
func (c *Cache) InvalidateUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if e.userID == userID {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Cleanup removes expired entries
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.config.TTL {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// HitRate returns hits over lookups
func (c *Cache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if total := c.hits + c.misses; total > 0 {
		return float64(c.hits) / float64(total)
	}
	return 0
}

// Clear drops every entry and resets the counters
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.hits, c.misses = 0, 0
	c.mu.Unlock()
}
