package rag

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config aggregates the component configurations of the retrieval pipeline.
// Weaviate and Redis sections are optional; leaving them out disables the
// vector stage and the shared cache tier.
type Config struct {
	Retriever   *RetrieverConfig      `yaml:"retriever"`
	Loader      *DocumentLoaderConfig `yaml:"loader"`
	Weaviate    *WeaviateConfig       `yaml:"weaviate,omitempty"`
	Redis       *RedisCacheConfig     `yaml:"redis,omitempty"`
	Indexer     *IndexerConfig        `yaml:"indexer"`
	MultiSource *MultiSourceConfig    `yaml:"multi_source"`
}

// DefaultConfig returns a config with every component at its defaults and
// the optional backends disabled.
func DefaultConfig() *Config {
	return &Config{
		Retriever:   getDefaultRetrieverConfig(),
		Loader:      getDefaultLoaderConfig(),
		Indexer:     getDefaultIndexerConfig(),
		MultiSource: getDefaultMultiSourceConfig(),
	}
}

// LoadConfig reads a YAML config file. Missing sections fall back to their
// defaults.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Retriever == nil {
		c.Retriever = getDefaultRetrieverConfig()
	}
	if c.Retriever.Cache == nil {
		c.Retriever.Cache = getDefaultMemoryCacheConfig()
	}
	if c.Loader == nil {
		c.Loader = getDefaultLoaderConfig()
	}
	if c.Indexer == nil {
		c.Indexer = getDefaultIndexerConfig()
	}
	if c.MultiSource == nil {
		c.MultiSource = getDefaultMultiSourceConfig()
	}
	if c.Weaviate != nil && c.Weaviate.ClassName == "" {
		defaults := getDefaultWeaviateConfig()
		if c.Weaviate.Scheme == "" {
			c.Weaviate.Scheme = defaults.Scheme
		}
		c.Weaviate.ClassName = defaults.ClassName
		if c.Weaviate.Timeout == 0 {
			c.Weaviate.Timeout = defaults.Timeout
		}
		if c.Weaviate.HybridAlpha == 0 {
			c.Weaviate.HybridAlpha = defaults.HybridAlpha
		}
	}
	if c.Redis != nil {
		defaults := getDefaultRedisCacheConfig()
		if c.Redis.Address == "" {
			c.Redis.Address = defaults.Address
		}
		if c.Redis.KeyPrefix == "" {
			c.Redis.KeyPrefix = defaults.KeyPrefix
		}
		if c.Redis.TTL == 0 {
			c.Redis.TTL = defaults.TTL
		}
		if c.Redis.PoolSize == 0 {
			c.Redis.PoolSize = defaults.PoolSize
		}
	}
}
