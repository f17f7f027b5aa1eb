package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieveMulti(t *testing.T) {
	ctx := context.Background()

	t.Run("MergesAcrossSources", func(t *testing.T) {
		retriever := newTestRetriever(t, nil)
		sources := map[string]*Document{
			"bylaws":  testDocument("bylaws.txt", testBylawsArticle),
			"minutes": testDocument("minutes.txt", "The board approved the new landscaping budget during the quarterly meeting of members."),
		}

		results, err := retriever.RetrieveMulti(ctx, "board meeting", sources, 10, nil)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		seen := make(map[string]bool)
		for _, result := range results {
			source := result.Chunk.Metadata["knowledge_source"]
			assert.Contains(t, []string{"bylaws", "minutes"}, source)
			seen[source] = true
		}
		assert.True(t, seen["bylaws"], "results from both sources are merged")
		assert.True(t, seen["minutes"])
	})

	t.Run("SortedAndTruncated", func(t *testing.T) {
		retriever := newTestRetriever(t, nil)
		sources := map[string]*Document{
			"bylaws":  testDocument("bylaws.txt", testBylawsArticle),
			"minutes": testDocument("minutes.txt", "The board approved the new landscaping budget during the quarterly meeting of members."),
		}

		results, err := retriever.RetrieveMulti(ctx, "board meeting", sources, 1, nil)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("FailingSourceDoesNotPoisonOthers", func(t *testing.T) {
		retriever := newTestRetriever(t, nil)
		sources := map[string]*Document{
			"bylaws": testDocument("bylaws.txt", testBylawsArticle),
			"empty":  testDocument("empty.txt", ""),
		}

		results, err := retriever.RetrieveMulti(ctx, "board meeting", sources, 10, nil)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, result := range results {
			assert.Equal(t, "bylaws", result.Chunk.Metadata["knowledge_source"])
		}
	})

	t.Run("NoSources", func(t *testing.T) {
		retriever := newTestRetriever(t, nil)
		results, err := retriever.RetrieveMulti(ctx, "board meeting", nil, 10, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("TimeoutMergesPartialResults", func(t *testing.T) {
		retriever := newTestRetriever(t, nil)
		sources := map[string]*Document{
			"bylaws": testDocument("bylaws.txt", testBylawsArticle),
		}
		config := &MultiSourceConfig{Concurrency: 1, Timeout: 5 * time.Second}

		results, err := retriever.RetrieveMulti(ctx, "board meeting", sources, 10, config)
		require.NoError(t, err)
		assert.NotEmpty(t, results)
	})
}
