package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/patrickmn/go-cache"
)

// Cache holds case details (case row plus hearings) per store.
type Cache interface {
	Get(key string) (*database.Case, bool)
	Set(key string, value *database.Case) error
	Delete(key string)
	Invalidate(store database.StoreName, caseNos ...string)
	Clear()
	Stats() CacheStats
}

type CacheStats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Size       int       `json:"size"`
	Evictions  int64     `json:"evictions"`
	LastAccess time.Time `json:"last_access"`
}

type LRUCache struct {
	cache   *cache.Cache
	mu      sync.RWMutex
	stats   CacheStats
	maxSize int
}

func NewCache(maxSize int, ttl time.Duration) Cache {
	return &LRUCache{
		cache:   cache.New(ttl, ttl*2),
		maxSize: maxSize,
		stats:   CacheStats{},
	}
}

func (c *LRUCache) Get(key string) (*database.Case, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()

	if data, found := c.cache.Get(key); found {
		if detail, ok := data.(*database.Case); ok {
			c.stats.Hits++
			return detail, true
		}
	}

	c.stats.Misses++
	return nil, false
}

func (c *LRUCache) Set(key string, value *database.Case) error {
	if value == nil {
		return fmt.Errorf("cache: nil value for %q", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache.Get(key); !exists && c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.removeOldest()
	}

	c.cache.Set(key, value, cache.DefaultExpiration)
	return nil
}

func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
}

// Invalidate drops the cached details of the given case numbers in store.
func (c *LRUCache) Invalidate(store database.StoreName, caseNos ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, caseNo := range caseNos {
		c.cache.Delete(GenerateCacheKey(store, caseNo))
	}
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.stats = CacheStats{}
}

func (c *LRUCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Size = c.cache.ItemCount()
	return stats
}

// removeOldest evicts the entry closest to expiry, which is the one written
// longest ago since every entry shares the same TTL.
func (c *LRUCache) removeOldest() {
	items := c.cache.Items()
	if len(items) == 0 {
		return
	}

	var oldestKey string
	var oldestExpiry int64

	for key, item := range items {
		if oldestKey == "" || item.Expiration < oldestExpiry {
			oldestKey = key
			oldestExpiry = item.Expiration
		}
	}

	if oldestKey != "" {
		c.cache.Delete(oldestKey)
		c.stats.Evictions++
	}
}

func GenerateCacheKey(store database.StoreName, caseNo string) string {
	return fmt.Sprintf("case:%s:%s", store, strings.TrimSpace(caseNo))
}
