package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCacheConfig holds configuration for the shared result cache tier.
type RedisCacheConfig struct {
	Address   string        `yaml:"address" json:"address"`
	Password  string        `yaml:"password" json:"password"`
	Database  int           `yaml:"database" json:"database"`
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
	PoolSize  int           `yaml:"pool_size" json:"pool_size"`
}

func getDefaultRedisCacheConfig() *RedisCacheConfig {
	return &RedisCacheConfig{
		Address:   "localhost:6379",
		KeyPrefix: "knowledge",
		TTL:       15 * time.Minute,
		PoolSize:  10,
	}
}

// resultCacheEntry is the serialized form of a cached retrieval response.
type resultCacheEntry struct {
	Query       string          `json:"query"`
	Results     []*ScoredResult `json:"results"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// RedisCache is an optional shared cache for retrieval results, layered in
// front of the per-process MemoryCache when several instances serve the same
// corpus.
type RedisCache struct {
	client *redis.Client
	config *RedisCacheConfig
	logger *slog.Logger
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(config *RedisCacheConfig) (*RedisCache, error) {
	if config == nil {
		config = getDefaultRedisCacheConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.Database,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	cache := &RedisCache{
		client: rdb,
		config: config,
		logger: slog.Default().With("component", "redis-cache"),
	}

	cache.logger.Info("Redis cache initialized", "address", config.Address, "database", config.Database)
	return cache, nil
}

// GetResults retrieves cached results for a key built by ResultCacheKey.
func (rc *RedisCache) GetResults(ctx context.Context, key string) ([]*ScoredResult, bool) {
	data, err := rc.client.Get(ctx, rc.buildKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			rc.logger.Error("Failed to get results from redis", "error", err, "key", key)
		}
		return nil, false
	}

	var entry resultCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		rc.logger.Error("Failed to unmarshal cached results", "error", err, "key", key)
		return nil, false
	}

	return entry.Results, true
}

// SetResults stores results under a key built by ResultCacheKey.
func (rc *RedisCache) SetResults(ctx context.Context, key, query string, results []*ScoredResult) error {
	entry := resultCacheEntry{
		Query:       query,
		Results:     results,
		ProcessedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := rc.client.Set(ctx, rc.buildKey(key), data, rc.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set results in redis: %w", err)
	}
	return nil
}

func (rc *RedisCache) buildKey(key string) string {
	return fmt.Sprintf("%s:results:%s", rc.config.KeyPrefix, key)
}

// Close releases the Redis connection pool.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
