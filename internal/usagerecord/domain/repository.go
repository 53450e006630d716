package domain

import (
	"context"
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	"gorm.io/gorm"
)

// Stamping methods take usedBefore: when non-nil the last-used time of the feature must be
// unset or at or before it, otherwise nothing is written and ErrCooldownActive is returned.
type Repository interface {
	Ensure(ctx context.Context, db *gorm.DB, record *UsageRecord) error
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*UsageRecord, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, userID string) (*UsageRecord, error)
	SaveRateWindows(ctx context.Context, db *gorm.DB, record *UsageRecord, at time.Time) error
	SavePeriod(ctx context.Context, db *gorm.DB, record *UsageRecord, at time.Time) error
	IncrementMonthly(ctx context.Context, db *gorm.DB, userID string, feature featuredomain.Code, limit int64, usedBefore *time.Time, at time.Time) (bool, error)
	DebitCredits(ctx context.Context, db *gorm.DB, userID string, amount int64, feature featuredomain.Code, usedBefore *time.Time, at time.Time) (bool, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, userID string, feature featuredomain.Code, usedBefore *time.Time, at time.Time) error
	AddCredits(ctx context.Context, db *gorm.DB, userID string, amount int64, purchased bool, at time.Time) (bool, error)
	MarkGrandfathered(ctx context.Context, db *gorm.DB, userID string, at time.Time) (bool, error)
	SetPartnership(ctx context.Context, db *gorm.DB, userID string, partnershipID *string, at time.Time) (bool, error)
}
