package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// resultTTL bounds how stale a cached fallback result may be.
const resultTTL = 15 * time.Minute

// ResultCache stores the last successful result per operation source so the
// FALLBACK_TO_CACHE strategy has material to serve.
type ResultCache struct {
	rdb *redis.Client
}

// NewResultCache creates a Redis-backed result cache.
func NewResultCache(client *Client) *ResultCache {
	return &ResultCache{rdb: client.rdb}
}

// Key helpers
func resultKey(source string) string {
	return fmt.Sprintf("healing:result:%s", source)
}

func namespacePattern(namespace string) string {
	return fmt.Sprintf("healing:result:%s*", namespace)
}

func queueDepthKey() string {
	return "healing:retry_queue:depth"
}

// Get returns the cached result for a source, (nil, false) on a miss.
func (c *ResultCache) Get(ctx context.Context, source string) (any, bool, error) {
	data, err := c.rdb.Get(ctx, resultKey(source)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached result: %w", err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return value, true, nil
}

// Set records a successful result for a source. Unserialisable results are
// skipped silently: caching is opportunistic.
func (c *ResultCache) Set(ctx context.Context, source string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	if err := c.rdb.Set(ctx, resultKey(source), data, resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// InvalidateNamespace deletes every cached result under a source prefix.
func (c *ResultCache) InvalidateNamespace(ctx context.Context, namespace string) (int, error) {
	var deleted int
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, namespacePattern(namespace), 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan cache namespace: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// SetQueueDepth mirrors the in-process retry queue depth into Redis so
// external dashboards can read it.
func (c *ResultCache) SetQueueDepth(ctx context.Context, depth int) {
	_ = c.rdb.Set(ctx, queueDepthKey(), depth, 0).Err()
}
