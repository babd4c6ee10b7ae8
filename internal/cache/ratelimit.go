package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultGenerationsPerMinute is the per-seller AI generation budget.
const DefaultGenerationsPerMinute = 10

// Checks and increments a fixed-window counter in one round trip so that
// concurrent requests cannot both pass a GET before either INCRs.
const windowLimitLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
    return 0
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end
return 1
`

// RateLimiter limits AI generation requests per seller per minute.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	script *redis.Script
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per seller.
// A non-positive perMinute uses DefaultGenerationsPerMinute.
func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultGenerationsPerMinute
	}
	return &RateLimiter{
		redis:  client,
		limit:  perMinute,
		script: redis.NewScript(windowLimitLuaScript),
		now:    time.Now,
	}
}

// Allow consumes one request from the seller's current window.
func (l *RateLimiter) Allow(ctx context.Context, sellerID string) (bool, error) {
	key := fmt.Sprintf("segments:ai:%s:%d", sellerID, l.now().Unix()/60)
	res, err := l.script.Run(ctx, l.redis, []string{key}, l.limit, 120).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return res == 1, nil
}
