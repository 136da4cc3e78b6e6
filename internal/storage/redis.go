package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// MetadataCache stores extracted image lists in Redis. It is a latency
// optimization only, never a security boundary: callers must still run the
// URL validator on every request no matter what the cache holds.
//
// A nil *MetadataCache is valid and behaves as an always-miss cache.
type MetadataCache struct {
	client *redis.Client
}

func NewMetadataCache(addr string) *MetadataCache {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &MetadataCache{client: rdb}
}

func (c *MetadataCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Get returns the cached image list for pageURL, if present.
func (c *MetadataCache) Get(ctx context.Context, pageURL string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, cacheKey(pageURL)).Result()
	if err != nil {
		return nil, false
	}
	var images []string
	if err := json.Unmarshal([]byte(val), &images); err != nil {
		return nil, false
	}
	return images, true
}

// Set stores the image list for pageURL with the given TTL. Failures are
// swallowed; a broken cache must not fail the request.
func (c *MetadataCache) Set(ctx context.Context, pageURL string, images []string, ttl time.Duration) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(pageURL), payload, ttl)
}

// cacheKey hashes the URL so arbitrary caller input never becomes a raw
// Redis key.
func cacheKey(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return "metadata:" + hex.EncodeToString(sum[:])
}
