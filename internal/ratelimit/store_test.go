package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	"github.com/smallbiznis/meterguard/internal/testutil"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	usagerecordrepo "github.com/smallbiznis/meterguard/internal/usagerecord/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type staticFeatures struct {
	catalog featuredomain.Catalog
}

func (s staticFeatures) Catalog() featuredomain.Catalog { return s.catalog }

func (s staticFeatures) Definition(code featuredomain.Code) (featuredomain.Definition, error) {
	def, ok := s.catalog.Lookup(code)
	if !ok {
		return featuredomain.Definition{}, featuredomain.ErrInvalidFeature
	}
	return def, nil
}

func withRates(hourly, daily int64) staticFeatures {
	base := featuredomain.DefaultCatalog()
	return staticFeatures{catalog: featuredomain.NewCatalog(base.Definitions(), featuredomain.RateLimits{Hourly: hourly, Daily: daily})}
}

var start = time.Date(2025, time.February, 3, 9, 0, 0, 0, time.UTC)

func newStoreLimiter(t *testing.T, features featuredomain.Service, users ...string) (*StoreLimiter, *gorm.DB) {
	t.Helper()
	db := testutil.OpenSQLite(t)
	repo := usagerecordrepo.Provide()
	for _, user := range users {
		record := usagerecorddomain.NewRecord(user, start)
		require.NoError(t, repo.Ensure(context.Background(), db, &record))
	}
	return NewStoreLimiter(db, zap.NewNop(), repo, features), db
}

func TestStoreLimiter_HourlyThenDaily(t *testing.T) {
	limiter, _ := newStoreLimiter(t, withRates(3, 5), "user-1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.CheckAndConsume(ctx, "user-1", start.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	now := start.Add(10 * time.Minute)
	res, err := limiter.CheckAndConsume(ctx, "user-1", now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ScopeHourly, res.Scope)
	assert.Equal(t, 50*time.Minute, res.RetryAfter)
	assert.Equal(t, int64(3), res.Hourly.Used)

	// the hourly window rolls, the daily one keeps counting
	now = start.Add(time.Hour)
	for i := 0; i < 2; i++ {
		res, err = limiter.CheckAndConsume(ctx, "user-1", now)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err = limiter.CheckAndConsume(ctx, "user-1", now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ScopeDaily, res.Scope)
	assert.Equal(t, 23*time.Hour, res.RetryAfter)
	assert.Equal(t, int64(5), res.Daily.Used)
	assert.Zero(t, res.Daily.Remaining())

	usage, err := limiter.Usage(ctx, "user-1", start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, usage.Allowed)
	assert.Zero(t, usage.Daily.Used)
}

func TestStoreLimiter_ConcurrentCallsNeverExceedCapacity(t *testing.T) {
	limiter, db := newStoreLimiter(t, withRates(100, 500), "user-1")

	var allowed, denied atomic.Int64
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
			} else {
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowed.Load())
	assert.Equal(t, int64(50), denied.Load())

	record, err := usagerecordrepo.Provide().FindByUserID(context.Background(), db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), record.HourlyCount)
	assert.Equal(t, int64(100), record.DailyCount)
}

func TestStoreLimiter_UsersAreIndependent(t *testing.T) {
	limiter, _ := newStoreLimiter(t, withRates(1, 10), "user-1", "user-2")
	ctx := context.Background()

	res, err := limiter.CheckAndConsume(ctx, "user-1", start)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	res, err = limiter.CheckAndConsume(ctx, "user-1", start)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = limiter.CheckAndConsume(ctx, "user-2", start)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestStoreLimiter_MissingRecord(t *testing.T) {
	limiter, _ := newStoreLimiter(t, withRates(1, 10))

	_, err := limiter.CheckAndConsume(context.Background(), "ghost", start)
	assert.ErrorIs(t, err, usagerecorddomain.ErrNotFound)

	_, err = limiter.CheckAndConsume(context.Background(), " ", start)
	assert.ErrorIs(t, err, ErrInvalidUser)

	usage, err := limiter.Usage(context.Background(), "ghost", start)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Hourly.Remaining())
	assert.True(t, usage.Hourly.ResetAt.Equal(start.Add(time.Hour)))
}
