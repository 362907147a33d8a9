package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, "restohub:rl:"), mr
}

func TestRedisLimiterWindow(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "principal:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := limiter.Allow(ctx, "principal:1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.True(t, mr.Exists("restohub:rl:principal:1"))

	mr.FastForward(time.Minute + time.Second)
	d, err = limiter.Allow(ctx, "principal:1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterBackendDown(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "ip:1", 2, time.Minute)
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	client.Close()

	_, err = NewRedisClient(context.Background(), "", "", 0)
	assert.Error(t, err)
}
