package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON-serializable adapter responses
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RedisCacheConfig contains configuration for the Redis cache
type RedisCacheConfig struct {
	RedisURL    string
	DefaultTTL  time.Duration
	MaxRetries  int
	PoolSize    int
	PoolTimeout time.Duration
}

// RedisCache wraps a Redis client with caching functionality for external API responses
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// cachedEntry wraps cached data with metadata
type cachedEntry struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(config RedisCacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.DefaultTTL), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, defaultTTL time.Duration) *RedisCache {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &RedisCache{redis: client, defaultTTL: defaultTTL}
}

// Get loads key into dest. A miss, an expired entry and a corrupted entry all report false.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry cachedEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		c.redis.Del(ctx, key)
		return false, nil
	}
	if time.Now().After(entry.ExpiresAt) {
		c.redis.Del(ctx, key)
		return false, nil
	}
	if err := json.Unmarshal(entry.Data, dest); err != nil {
		c.redis.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// Set stores value under key; a zero ttl uses the default.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	now := time.Now()
	entry, err := json.Marshal(cachedEntry{Data: data, CachedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return c.redis.Set(ctx, key, entry, ttl).Err()
}

// Delete removes keys from the cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

// Ping checks if Redis connection is alive
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}

// CacheKey builds a namespaced key from a hash of parts.
func CacheKey(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return fmt.Sprintf("bioeq:%s:%x", namespace, hash[:12])
}
