// Package cache provides an in-process cache used when Redis is not configured.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a size-bounded LRU cache with a single expiry applied to every entry.
// Values are stored as JSON so callers get independent copies.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache creates a cache holding at most maxKeys entries for ttl each.
func NewMemoryCache(maxKeys int, ttl time.Duration) *MemoryCache {
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](maxKeys, nil, ttl)}
}

// Get loads key into dest and reports whether it was present.
func (c *MemoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.lru.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.lru.Remove(key)
		return false, nil
	}
	return true, nil
}

// Set stores value under key. The per-call ttl is ignored; the cache-wide expiry applies.
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	c.lru.Add(key, raw)
	return nil
}

// Len returns the number of cached entries
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Close purges all entries
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
