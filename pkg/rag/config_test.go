package rag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.NotNil(t, config.Retriever)
	assert.Equal(t, 1500, config.Retriever.MaxChunkSize)
	assert.Equal(t, 200, config.Retriever.ChunkOverlap)
	require.NotNil(t, config.Retriever.Cache)
	assert.Equal(t, 256, config.Retriever.Cache.MaxItems)

	require.NotNil(t, config.Loader)
	assert.Contains(t, config.Loader.SupportedFormats, ".pdf")

	assert.Nil(t, config.Weaviate, "vector backend is opt-in")
	assert.Nil(t, config.Redis, "shared cache is opt-in")

	require.NotNil(t, config.MultiSource)
	assert.Equal(t, 4, config.MultiSource.Concurrency)
}

func TestLoadConfig(t *testing.T) {
	t.Run("OverridesAndDefaults", func(t *testing.T) {
		raw := `
retriever:
  max_chunk_size: 800
  chunk_overlap: 100
loader:
  supported_formats: [".txt"]
  max_file_size: 1048576
redis:
  address: "redis.internal:6379"
`
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

		config, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 800, config.Retriever.MaxChunkSize)
		assert.Equal(t, 100, config.Retriever.ChunkOverlap)
		assert.NotNil(t, config.Retriever.Cache, "omitted cache section gets defaults")

		assert.Equal(t, []string{".txt"}, config.Loader.SupportedFormats)

		require.NotNil(t, config.Redis)
		assert.Equal(t, "redis.internal:6379", config.Redis.Address)
		assert.Equal(t, "knowledge", config.Redis.KeyPrefix, "omitted redis fields get defaults")
		assert.NotZero(t, config.Redis.TTL)

		assert.Nil(t, config.Weaviate, "absent weaviate section stays disabled")
		assert.NotNil(t, config.MultiSource)
	})

	t.Run("WeaviateDefaults", func(t *testing.T) {
		raw := `
weaviate:
  host: "weaviate.internal:8080"
`
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

		config, err := LoadConfig(path)
		require.NoError(t, err)

		require.NotNil(t, config.Weaviate)
		assert.Equal(t, "weaviate.internal:8080", config.Weaviate.Host)
		assert.Equal(t, "http", config.Weaviate.Scheme)
		assert.Equal(t, "KnowledgeChunk", config.Weaviate.ClassName)
		assert.NotZero(t, config.Weaviate.Timeout)
	})

	t.Run("EmptyFileUsesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), config)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/config.yaml")
		assert.Error(t, err)
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("retriever: ["), 0644))

		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "failed to parse config")
	})
}
