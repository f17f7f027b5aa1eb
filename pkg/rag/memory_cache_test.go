package rag

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward explicitly.
type fakeClock struct {
	now time.Time
}

func (fc *fakeClock) Now() time.Time { return fc.now }

func (fc *fakeClock) advance(d time.Duration) { fc.now = fc.now.Add(d) }

func testResults(content string) []*ScoredResult {
	return []*ScoredResult{{
		Chunk: &DocumentChunk{ID: chunkID(content), Content: content},
		Score: 0.5,
	}}
}

func TestMemoryCache(t *testing.T) {
	t.Run("HitAfterSet", func(t *testing.T) {
		cache := NewMemoryCache(nil, nil)
		results := testResults("the board meets monthly")

		cache.Set("key", results)
		got, ok := cache.Get("key")
		require.True(t, ok)
		assert.Equal(t, results, got)

		metrics := cache.GetMetrics()
		assert.Equal(t, int64(1), metrics.Hits)
		assert.Equal(t, int64(1), metrics.Sets)
	})

	t.Run("Miss", func(t *testing.T) {
		cache := NewMemoryCache(nil, nil)
		_, ok := cache.Get("absent")
		assert.False(t, ok)
		assert.Equal(t, int64(1), cache.GetMetrics().Misses)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		cache := NewMemoryCache(&MemoryCacheConfig{MaxItems: 8, TTL: time.Minute}, clock)

		cache.Set("key", testResults("expiring entry"))

		clock.advance(59 * time.Second)
		_, ok := cache.Get("key")
		assert.True(t, ok, "entry is live before the TTL elapses")

		clock.advance(2 * time.Second)
		_, ok = cache.Get("key")
		assert.False(t, ok, "entry expires after the TTL")
		assert.Equal(t, int64(1), cache.GetMetrics().TTLEvictions)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("LRUEviction", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		cache := NewMemoryCache(&MemoryCacheConfig{MaxItems: 2, TTL: time.Hour}, clock)

		cache.Set("a", testResults("entry a"))
		cache.Set("b", testResults("entry b"))

		// Touch "a" so "b" becomes the least recently used entry.
		_, ok := cache.Get("a")
		require.True(t, ok)

		cache.Set("c", testResults("entry c"))

		_, ok = cache.Get("b")
		assert.False(t, ok, "least recently used entry is evicted")
		_, ok = cache.Get("a")
		assert.True(t, ok)
		_, ok = cache.Get("c")
		assert.True(t, ok)

		assert.Equal(t, 2, cache.Len())
		assert.Equal(t, int64(1), cache.GetMetrics().LRUEvictions)
	})

	t.Run("SetUpdatesInPlace", func(t *testing.T) {
		cache := NewMemoryCache(&MemoryCacheConfig{MaxItems: 2, TTL: time.Hour}, nil)

		cache.Set("key", testResults("first"))
		cache.Set("key", testResults("second"))

		got, ok := cache.Get("key")
		require.True(t, ok)
		assert.Equal(t, "second", got[0].Chunk.Content)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("CapacityNeverExceeded", func(t *testing.T) {
		cache := NewMemoryCache(&MemoryCacheConfig{MaxItems: 4, TTL: time.Hour}, nil)
		for i := 0; i < 20; i++ {
			cache.Set(fmt.Sprintf("key-%d", i), testResults(fmt.Sprintf("entry %d", i)))
		}
		assert.Equal(t, 4, cache.Len())
	})
}

func TestResultCacheKey(t *testing.T) {
	t.Run("SourceOrderInsensitive", func(t *testing.T) {
		a := ResultCacheKey("query", "retrieve", []string{"one.txt", "two.txt"})
		b := ResultCacheKey("query", "retrieve", []string{"two.txt", "one.txt"})
		assert.Equal(t, a, b)
	})

	t.Run("DistinguishesInputs", func(t *testing.T) {
		base := ResultCacheKey("query", "retrieve", []string{"doc.txt"})
		assert.NotEqual(t, base, ResultCacheKey("other", "retrieve", []string{"doc.txt"}))
		assert.NotEqual(t, base, ResultCacheKey("query", "multi", []string{"doc.txt"}))
		assert.NotEqual(t, base, ResultCacheKey("query", "retrieve", []string{"other.txt"}))
	})

	t.Run("DoesNotMutateSources", func(t *testing.T) {
		sources := []string{"z.txt", "a.txt"}
		ResultCacheKey("query", "retrieve", sources)
		assert.Equal(t, []string{"z.txt", "a.txt"}, sources)
	})
}
