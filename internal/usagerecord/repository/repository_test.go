package repository

import (
	"context"
	"testing"
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	"github.com/smallbiznis/meterguard/internal/testutil"
	"github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

func TestEnsureIsIdempotent(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := Provide()
	ctx := context.Background()

	first := domain.NewRecord("user-1", baseTime)
	require.NoError(t, repo.Ensure(ctx, db, &first))

	_, err := repo.IncrementMonthly(ctx, db, "user-1", featuredomain.AISearch, 20, nil, baseTime)
	require.NoError(t, err)

	second := domain.NewRecord("user-1", baseTime.Add(time.Hour))
	require.NoError(t, repo.Ensure(ctx, db, &second))

	record, err := repo.FindByUserID(ctx, db, "user-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(1), record.SearchCount)
	assert.True(t, record.PeriodStart.Equal(baseTime))
	assert.True(t, record.PeriodEnd.Equal(baseTime.AddDate(0, 1, 0)))
	assert.True(t, record.HourlyResetAt.Equal(baseTime.Add(time.Hour)))
}

func TestFindByUserIDMissing(t *testing.T) {
	db := testutil.OpenSQLite(t)
	record, err := Provide().FindByUserID(context.Background(), db, "nobody")
	require.NoError(t, err)
	assert.Nil(t, record)

	_, err = Provide().FindForUpdate(context.Background(), db, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIncrementMonthlyStopsAtLimit(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := Provide()
	ctx := context.Background()

	record := domain.NewRecord("user-1", baseTime)
	require.NoError(t, repo.Ensure(ctx, db, &record))

	for i := 0; i < 3; i++ {
		ok, err := repo.IncrementMonthly(ctx, db, "user-1", featuredomain.AIGrantWriting, 3, nil, baseTime)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.IncrementMonthly(ctx, db, "user-1", featuredomain.AIGrantWriting, 3, nil, baseTime)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByUserID(ctx, db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), found.GrantWritingCount)
	require.NotNil(t, found.GrantWritingLastUsedAt)
	assert.True(t, found.GrantWritingLastUsedAt.Equal(baseTime))
	assert.Zero(t, found.SearchCount)
}

func TestIncrementMonthlyUnlimited(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := Provide()
	ctx := context.Background()

	record := domain.NewRecord("user-1", baseTime)
	require.NoError(t, repo.Ensure(ctx, db, &record))

	for i := 0; i < 25; i++ {
		ok, err := repo.IncrementMonthly(ctx, db, "user-1", featuredomain.AISynthesis, -1, nil, baseTime)
		require.NoError(t, err)
		require.True(t, ok)
	}
	found, err := repo.FindByUserID(ctx, db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), found.SynthesisCount)
}

func TestIncrementMonthlyRejectsUnknownFeature(t *testing.T) {
	db := testutil.OpenSQLite(t)
	_, err := Provide().IncrementMonthly(context.Background(), db, "user-1", featuredomain.Code("search_count = 0; --"), 10, nil, baseTime)
	assert.ErrorIs(t, err, featuredomain.ErrInvalidFeature)
}

func TestDebitCreditsNeverOverdraws(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := Provide()
	ctx := context.Background()

	record := domain.NewRecord("user-1", baseTime)
	require.NoError(t, repo.Ensure(ctx, db, &record))
	ok, err := repo.AddCredits(ctx, db, "user-1", 4, true, baseTime)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.DebitCredits(ctx, db, "user-1", 3, featuredomain.AIAnalysis, nil, baseTime)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DebitCredits(ctx, db, "user-1", 3, featuredomain.AIAnalysis, nil, baseTime)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByUserID(ctx, db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.AvailableCredits)
	assert.Equal(t, int64(4), found.LifetimeCreditsPurchased)
	require.NotNil(t, found.AnalysisLastUsedAt)
}

func TestStampsRespectCooldown(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := Provide()
	ctx := context.Background()

	record := domain.NewRecord("user-1", baseTime)
	require.NoError(t, repo.Ensure(ctx, db, &record))
	_, err := repo.AddCredits(ctx, db, "user-1", 10, true, baseTime)
	require.NoError(t, err)

	// never used: the condition holds
	cutoff := baseTime.Add(-300 * time.Second)
	ok, err := repo.IncrementMonthly(ctx, db, "user-1", featuredomain.AIGrantWriting, 3, &cutoff, baseTime)
	require.NoError(t, err)
	require.True(t, ok)

	// a second caller that saw the record before the first stamp
	later := baseTime.Add(10 * time.Second)
	stale := later.Add(-300 * time.Second)
	ok, err = repo.IncrementMonthly(ctx, db, "user-1", featuredomain.AIGrantWriting, 3, &stale, later)
	assert.ErrorIs(t, err, domain.ErrCooldownActive)
	assert.False(t, ok)

	ok, err = repo.DebitCredits(ctx, db, "user-1", 5, featuredomain.AIGrantWriting, &stale, later)
	assert.ErrorIs(t, err, domain.ErrCooldownActive)
	assert.False(t, ok)

	err = repo.TouchLastUsed(ctx, db, "user-1", featuredomain.AIGrantWriting, &stale, later)
	assert.ErrorIs(t, err, domain.ErrCooldownActive)

	found, err := repo.FindByUserID(ctx, db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.GrantWritingCount)
	assert.Equal(t, int64(10), found.AvailableCredits)
	require.NotNil(t, found.GrantWritingLastUsedAt)
	assert.True(t, found.GrantWritingLastUsedAt.Equal(baseTime))

	// boundary is inclusive
	onTime := baseTime.Add(300 * time.Second)
	boundary := onTime.Add(-300 * time.Second)
	ok, err = repo.IncrementMonthly(ctx, db, "user-1", featuredomain.AIGrantWriting, 3, &boundary, onTime)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDebitCreditsInsufficientIsNotCooldown(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := Provide()
	ctx := context.Background()

	record := domain.NewRecord("user-1", baseTime)
	require.NoError(t, repo.Ensure(ctx, db, &record))

	cutoff := baseTime.Add(-120 * time.Second)
	ok, err := repo.DebitCredits(ctx, db, "user-1", 3, featuredomain.AIAnalysis, &cutoff, baseTime)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPartnershipAndGrandfather(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := Provide()
	ctx := context.Background()

	record := domain.NewRecord("user-1", baseTime)
	require.NoError(t, repo.Ensure(ctx, db, &record))

	partnership := "uni-42"
	ok, err := repo.SetPartnership(ctx, db, "user-1", &partnership, baseTime)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkGrandfathered(ctx, db, "user-1", baseTime)
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.FindByUserID(ctx, db, "user-1")
	require.NoError(t, err)
	assert.True(t, found.IsGrandfathered)
	assert.True(t, found.HasPartnership())
	assert.Equal(t, "uni-42", *found.PartnershipID)

	ok, err = repo.SetPartnership(ctx, db, "user-1", nil, baseTime)
	require.NoError(t, err)
	assert.True(t, ok)
	found, err = repo.FindByUserID(ctx, db, "user-1")
	require.NoError(t, err)
	assert.False(t, found.HasPartnership())
}

func TestSavePeriodAndRateWindows(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := Provide()
	ctx := context.Background()

	record := domain.NewRecord("user-1", baseTime)
	require.NoError(t, repo.Ensure(ctx, db, &record))
	_, err := repo.IncrementMonthly(ctx, db, "user-1", featuredomain.AISearch, -1, nil, baseTime)
	require.NoError(t, err)

	later := baseTime.AddDate(0, 2, 3)
	locked, err := repo.FindForUpdate(ctx, db, "user-1")
	require.NoError(t, err)
	rolled, changed := locked.RollPeriod(later)
	require.True(t, changed)
	require.NoError(t, repo.SavePeriod(ctx, db, &rolled, later))

	rolled.HourlyCount = 7
	rolled.HourlyResetAt = later.Add(time.Hour)
	require.NoError(t, repo.SaveRateWindows(ctx, db, &rolled, later))

	found, err := repo.FindByUserID(ctx, db, "user-1")
	require.NoError(t, err)
	assert.Zero(t, found.SearchCount)
	assert.True(t, found.PeriodStart.Equal(baseTime.AddDate(0, 2, 0)))
	assert.True(t, found.PeriodEnd.Equal(baseTime.AddDate(0, 3, 0)))
	assert.Equal(t, int64(7), found.HourlyCount)
	assert.True(t, found.HourlyResetAt.Equal(later.Add(time.Hour)))
}
