package services

import (
	"sync"
	"time"

	"stockpulse-api/internal/models"
)

// Cache is a generic in-memory TTL cache.
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]*cacheItem[V]
	ttl   time.Duration
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		items: make(map[K]*cacheItem[V]),
		ttl:   ttl,
	}
	go c.cleanup()
	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || time.Now().After(item.expiration) {
		var zero V
		return zero, false
	}
	return item.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem[V]{
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}
}

func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*cacheItem[V])
}

func (c *Cache[K, V]) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, item := range c.items {
			if now.After(item.expiration) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

// CacheService holds the per-response in-memory caches. Price history
// itself is cached in SQLite by the storage layer.
type CacheService struct {
	quotes      *Cache[string, *models.Quote]
	metrics     *Cache[string, *models.MetricsResponse]
	simulations *Cache[string, *models.SimulationResponse]
	analyses    *Cache[string, *models.AnalysisResponse]
}

func NewCacheService(ttl time.Duration) *CacheService {
	return &CacheService{
		quotes:      NewCache[string, *models.Quote](ttl),
		metrics:     NewCache[string, *models.MetricsResponse](ttl),
		simulations: NewCache[string, *models.SimulationResponse](ttl),
		analyses:    NewCache[string, *models.AnalysisResponse](ttl),
	}
}

// PurgeAll drops every in-memory cache entry.
func (s *CacheService) PurgeAll() {
	s.quotes.Purge()
	s.metrics.Purge()
	s.simulations.Purge()
	s.analyses.Purge()
}
