package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisLimiter(t *testing.T, hourly, daily int64) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, "test:rate", zap.NewNop(), withRates(hourly, daily)), mr
}

func TestRedisLimiter_FixedWindows(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 2, 3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.CheckAndConsume(ctx, "user-1", start)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	res, err := limiter.CheckAndConsume(ctx, "user-1", start.Add(15*time.Minute))
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ScopeHourly, res.Scope)
	assert.Equal(t, 45*time.Minute, res.RetryAfter)
	assert.True(t, mr.Exists("test:rate:{user-1}:hourly"))
	assert.True(t, mr.Exists("test:rate:{user-1}:daily"))

	res, err = limiter.CheckAndConsume(ctx, "user-1", start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Hourly.Used)
	assert.Equal(t, int64(3), res.Daily.Used)

	res, err = limiter.CheckAndConsume(ctx, "user-1", start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ScopeDaily, res.Scope)
	assert.Equal(t, 22*time.Hour, res.RetryAfter)
}

func TestRedisLimiter_UsageDoesNotConsume(t *testing.T) {
	limiter, _ := newRedisLimiter(t, 5, 10)
	ctx := context.Background()

	_, err := limiter.CheckAndConsume(ctx, "user-1", start)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		usage, err := limiter.Usage(ctx, "user-1", start.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), usage.Hourly.Used)
		assert.Equal(t, int64(4), usage.Hourly.Remaining())
		assert.True(t, usage.Hourly.ResetAt.Equal(start.Add(time.Hour)))
	}

	fresh, err := limiter.Usage(ctx, "user-2", start)
	require.NoError(t, err)
	assert.Zero(t, fresh.Daily.Used)
}

func TestRedisLimiter_Concurrent(t *testing.T) {
	limiter, _ := newRedisLimiter(t, 100, 500)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := limiter.CheckAndConsume(context.Background(), "user-1", start)
			if err != nil {
				t.Error(err)
				return
			}
			if res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), allowed.Load())
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	limiter := NewRedisLimiter(client, "", zap.NewNop(), withRates(5, 10))

	_, err := limiter.CheckAndConsume(context.Background(), "user-1", start)
	assert.Error(t, err)
}
