package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCountTTL bounds how stale a cached audience count may get while
// audience members change underneath an unchanged segment.
const DefaultCountTTL = 5 * time.Minute

// CountCache caches audience counts per segment.
type CountCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCountCache creates a count cache. A non-positive ttl uses DefaultCountTTL.
func NewCountCache(client *redis.Client, ttl time.Duration) *CountCache {
	if ttl <= 0 {
		ttl = DefaultCountTTL
	}
	return &CountCache{redis: client, ttl: ttl}
}

func countKey(sellerID, segmentID string) string {
	return fmt.Sprintf("segments:count:%s:%s", sellerID, segmentID)
}

// GetCount returns the cached count. ok is false on a miss.
func (c *CountCache) GetCount(ctx context.Context, sellerID, segmentID string) (int, bool, error) {
	raw, err := c.redis.Get(ctx, countKey(sellerID, segmentID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cached count: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetCount stores a count for the configured TTL.
func (c *CountCache) SetCount(ctx context.Context, sellerID, segmentID string, n int) error {
	if err := c.redis.Set(ctx, countKey(sellerID, segmentID), n, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached count: %w", err)
	}
	return nil
}

// Invalidate drops the cached count of a segment.
func (c *CountCache) Invalidate(ctx context.Context, sellerID, segmentID string) error {
	if err := c.redis.Del(ctx, countKey(sellerID, segmentID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached count: %w", err)
	}
	return nil
}
