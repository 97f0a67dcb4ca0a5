package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/onnwee/barnes-hut-tree/internal/metrics"
)

// LRUCache is a size-bounded cache backed by ristretto. Cost is the byte
// length of the stored value.
type LRUCache struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

// NewLRU creates a cache holding at most maxSizeMB megabytes across roughly
// maxEntries keys.
func NewLRU(maxSizeMB int64, maxEntries int64, defaultTTL time.Duration) (*LRUCache, error) {
	// ristretto wants ~10 counters per expected entry.
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxSizeMB * 1024 * 1024,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &LRUCache{cache: c, defaultTTL: defaultTTL}, nil
}

func (c *LRUCache) Get(key string) ([]byte, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	item, ok := val.(*cacheItem)
	if !ok || time.Now().After(item.expiresAt) {
		c.cache.Del(key)
		return nil, false
	}
	return item.data, true
}

func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	item := &cacheItem{data: value, expiresAt: time.Now().Add(ttl)}
	// A rejected Set just means the value is not cached.
	_ = c.cache.Set(key, item, int64(len(value)))
	// Make the value visible to the next Get.
	c.cache.Wait()
}

func (c *LRUCache) Delete(key string) {
	c.cache.Del(key)
}

func (c *LRUCache) Clear() {
	c.cache.Clear()
}

func (c *LRUCache) Stats() Stats {
	m := c.cache.Metrics
	if m == nil {
		return Stats{}
	}
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close releases ristretto's goroutines.
func (c *LRUCache) Close() {
	c.cache.Close()
}

// GetOrLoad returns the cached value for key, or calls load, caches its
// result for the default TTL and returns it. endpoint labels the hit and
// miss counters.
func GetOrLoad(c Cache, endpoint, key string, load func() ([]byte, error)) ([]byte, error) {
	if c != nil {
		if b, ok := c.Get(key); ok {
			metrics.APICacheHits.WithLabelValues(endpoint).Inc()
			return b, nil
		}
		metrics.APICacheMisses.WithLabelValues(endpoint).Inc()
	}
	b, err := load()
	if err != nil {
		return nil, err
	}
	if c != nil {
		c.Set(key, b, 0)
		metrics.APICacheItems.WithLabelValues(endpoint).Set(float64(c.Stats().Items))
	}
	return b, nil
}
