package rag

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Clock supplies the current time. Injecting it keeps TTL behavior testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// MemoryCacheConfig holds configuration for the in-process result cache.
type MemoryCacheConfig struct {
	MaxItems int           `yaml:"max_items" json:"max_items"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

func getDefaultMemoryCacheConfig() *MemoryCacheConfig {
	return &MemoryCacheConfig{
		MaxItems: 256,
		TTL:      5 * time.Minute,
	}
}

// MemoryCacheMetrics tracks cache effectiveness.
type MemoryCacheMetrics struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Sets         int64 `json:"sets"`
	LRUEvictions int64 `json:"lru_evictions"`
	TTLEvictions int64 `json:"ttl_evictions"`
}

type cacheEntry struct {
	key       string
	results   []*ScoredResult
	expiresAt time.Time
}

// MemoryCache is an explicit LRU+TTL cache for retrieval results. It is a
// performance shortcut only: entries are fully derived and safe to lose.
type MemoryCache struct {
	config  *MemoryCacheConfig
	clock   Clock
	logger  *slog.Logger
	metrics MemoryCacheMetrics

	mutex sync.Mutex
	items map[string]*list.Element
	lru   *list.List // front = most recently used
}

// NewMemoryCache creates a result cache. A nil config uses defaults; a nil
// clock uses the system clock.
func NewMemoryCache(config *MemoryCacheConfig, clock Clock) *MemoryCache {
	if config == nil {
		config = getDefaultMemoryCacheConfig()
	}
	if clock == nil {
		clock = systemClock{}
	}

	return &MemoryCache{
		config: config,
		clock:  clock,
		logger: slog.Default().With("component", "memory-cache"),
		items:  make(map[string]*list.Element),
		lru:    list.New(),
	}
}

// ResultCacheKey builds a deterministic key from query, operation, and the
// set of source identifiers (order-insensitive).
func ResultCacheKey(query, operation string, sources []string) string {
	sorted := append([]string(nil), sources...)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(query + "\x00" + operation + "\x00" + strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached results for key, or false on a miss or expiry.
func (mc *MemoryCache) Get(key string) ([]*ScoredResult, bool) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	elem, ok := mc.items[key]
	if !ok {
		mc.metrics.Misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if mc.clock.Now().After(entry.expiresAt) {
		mc.lru.Remove(elem)
		delete(mc.items, key)
		mc.metrics.Misses++
		mc.metrics.TTLEvictions++
		return nil, false
	}

	mc.lru.MoveToFront(elem)
	mc.metrics.Hits++
	return entry.results, true
}

// Set stores results under key, evicting the least recently used entry when
// the cache is full.
func (mc *MemoryCache) Set(key string, results []*ScoredResult) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.metrics.Sets++
	expiresAt := mc.clock.Now().Add(mc.config.TTL)

	if elem, ok := mc.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.results = results
		entry.expiresAt = expiresAt
		mc.lru.MoveToFront(elem)
		return
	}

	if mc.lru.Len() >= mc.config.MaxItems {
		oldest := mc.lru.Back()
		if oldest != nil {
			mc.lru.Remove(oldest)
			delete(mc.items, oldest.Value.(*cacheEntry).key)
			mc.metrics.LRUEvictions++
		}
	}

	mc.items[key] = mc.lru.PushFront(&cacheEntry{
		key:       key,
		results:   results,
		expiresAt: expiresAt,
	})
}

// Len reports the number of live entries, counting expired ones until they
// are touched.
func (mc *MemoryCache) Len() int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return mc.lru.Len()
}

// GetMetrics returns a copy of the cache metrics.
func (mc *MemoryCache) GetMetrics() MemoryCacheMetrics {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return mc.metrics
}
