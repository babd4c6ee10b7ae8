package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCountCache(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewCountCache(client, time.Minute)
	ctx := context.Background()

	_, ok, err := c.GetCount(ctx, "seller-1", "seg-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetCount(ctx, "seller-1", "seg-1", 42))
	n, ok, err := c.GetCount(ctx, "seller-1", "seg-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok, _ = c.GetCount(ctx, "seller-2", "seg-1")
	assert.False(t, ok, "counts are scoped per seller")

	require.NoError(t, c.Invalidate(ctx, "seller-1", "seg-1"))
	_, ok, _ = c.GetCount(ctx, "seller-1", "seg-1")
	assert.False(t, ok)

	require.NoError(t, c.SetCount(ctx, "seller-1", "seg-1", 7))
	mr.FastForward(2 * time.Minute)
	_, ok, _ = c.GetCount(ctx, "seller-1", "seg-1")
	assert.False(t, ok, "counts expire after the TTL")
}

func TestCountCacheCorruptValueIsMiss(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewCountCache(client, 0)
	require.NoError(t, mr.Set(countKey("seller-1", "seg-1"), "lots"))

	_, ok, err := c.GetCount(context.Background(), "seller-1", "seg-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountCacheRedisDown(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewCountCache(client, time.Minute)
	mr.Close()

	_, _, err := c.GetCount(context.Background(), "seller-1", "seg-1")
	assert.Error(t, err)
}

func TestRateLimiter(t *testing.T) {
	mr, client := setupRedis(t)
	l := NewRateLimiter(client, 2)
	window := time.Date(2025, 7, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return window }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "seller-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "seller-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "seller-2")
	require.NoError(t, err)
	assert.True(t, ok, "limits are per seller")

	window = window.Add(time.Minute)
	ok, err = l.Allow(ctx, "seller-1")
	require.NoError(t, err)
	assert.True(t, ok, "a new window resets the budget")

	key := fmt.Sprintf("segments:ai:seller-1:%d", window.Unix()/60)
	assert.Equal(t, 120*time.Second, mr.TTL(key))
}
