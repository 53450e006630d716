package ratelimit

import (
	"context"
	"strings"
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StoreLimiter keeps the windows on the user's usage record and serializes
// callers through a row lock.
type StoreLimiter struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     usagerecorddomain.Repository
	features featuredomain.Service
}

func NewStoreLimiter(db *gorm.DB, log *zap.Logger, repo usagerecorddomain.Repository, features featuredomain.Service) *StoreLimiter {
	return &StoreLimiter{
		db:       db,
		log:      log.Named("ratelimit.store"),
		repo:     repo,
		features: features,
	}
}

// CheckAndConsume expects the usage record to exist.
func (l *StoreLimiter) CheckAndConsume(ctx context.Context, userID string, now time.Time) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, ErrInvalidUser
	}
	rates := currentRates(l.features)

	var result Result
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := l.repo.FindForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		rolled, changed := record.RollRateWindows(now)
		result = decide(
			WindowUsage{Limit: rates.Hourly, Used: rolled.HourlyCount, ResetAt: rolled.HourlyResetAt},
			WindowUsage{Limit: rates.Daily, Used: rolled.DailyCount, ResetAt: rolled.DailyResetAt},
			now,
		)
		if result.Allowed {
			rolled.HourlyCount++
			rolled.DailyCount++
			result.Hourly.Used = rolled.HourlyCount
			result.Daily.Used = rolled.DailyCount
			changed = true
		}
		if !changed {
			return nil
		}
		return l.repo.SaveRateWindows(ctx, tx, &rolled, now)
	})
	if err != nil {
		return Result{}, err
	}

	if !result.Allowed {
		l.log.Debug("rate limit reached",
			zap.String("user_id", userID),
			zap.String("scope", string(result.Scope)),
			zap.Duration("retry_after", result.RetryAfter),
		)
	}
	return result, nil
}

// Usage projects rollover in memory. A user without a record reports fresh windows.
func (l *StoreLimiter) Usage(ctx context.Context, userID string, now time.Time) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, ErrInvalidUser
	}
	record, err := l.repo.FindByUserID(ctx, l.db, userID)
	if err != nil {
		return Result{}, err
	}
	if record == nil {
		fresh := usagerecorddomain.NewRecord(userID, now)
		record = &fresh
	}
	return UsageFromRecord(*record, currentRates(l.features), now), nil
}

// UsageFromRecord computes window usage from a record snapshot.
func UsageFromRecord(record usagerecorddomain.UsageRecord, rates featuredomain.RateLimits, now time.Time) Result {
	rolled, _ := record.RollRateWindows(now)
	return decide(
		WindowUsage{Limit: rates.Hourly, Used: rolled.HourlyCount, ResetAt: rolled.HourlyResetAt},
		WindowUsage{Limit: rates.Daily, Used: rolled.DailyCount, ResetAt: rolled.DailyResetAt},
		now,
	)
}
