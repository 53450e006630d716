package repository

import (
	"context"
	"errors"
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	"github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Ensure(ctx context.Context, db *gorm.DB, record *domain.UsageRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(record).Error
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.UsageRecord, error) {
	var record domain.UsageRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, userID string) (*domain.UsageRecord, error) {
	var record domain.UsageRecord
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) SaveRateWindows(ctx context.Context, db *gorm.DB, record *domain.UsageRecord, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", record.UserID).
		Updates(map[string]any{
			"hourly_count":    record.HourlyCount,
			"hourly_reset_at": record.HourlyResetAt.UTC(),
			"daily_count":     record.DailyCount,
			"daily_reset_at":  record.DailyResetAt.UTC(),
			"updated_at":      at.UTC(),
		}).Error
}

func (r *repo) SavePeriod(ctx context.Context, db *gorm.DB, record *domain.UsageRecord, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", record.UserID).
		Updates(map[string]any{
			"period_start":        record.PeriodStart.UTC(),
			"period_end":          record.PeriodEnd.UTC(),
			"search_count":        record.SearchCount,
			"analysis_count":      record.AnalysisCount,
			"grant_writing_count": record.GrantWritingCount,
			"synthesis_count":     record.SynthesisCount,
			"updated_at":          at.UTC(),
		}).Error
}

// IncrementMonthly bumps the monthly counter of feature and stamps its last-used time. A
// non-negative limit makes the update conditional on the counter staying below it; the
// returned flag is false when that condition no longer held.
func (r *repo) IncrementMonthly(ctx context.Context, db *gorm.DB, userID string, feature featuredomain.Code, limit int64, usedBefore *time.Time, at time.Time) (bool, error) {
	countCol, err := domain.CountColumn(feature)
	if err != nil {
		return false, err
	}
	lastUsedCol, err := domain.LastUsedColumn(feature)
	if err != nil {
		return false, err
	}

	stmt := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", userID)
	if limit >= 0 {
		stmt = stmt.Where(clause.Lt{Column: clause.Column{Name: countCol}, Value: limit})
	}
	if usedBefore != nil {
		stmt = stmt.Where(idleSince(lastUsedCol, *usedBefore))
	}

	result := stmt.Updates(map[string]any{
		countCol:     gorm.Expr("? + ?", clause.Column{Name: countCol}, 1),
		lastUsedCol:  at.UTC(),
		"updated_at": at.UTC(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	return false, r.cooldownConflict(ctx, db, userID, lastUsedCol, usedBefore)
}

// DebitCredits subtracts amount only when the balance covers it.
func (r *repo) DebitCredits(ctx context.Context, db *gorm.DB, userID string, amount int64, feature featuredomain.Code, usedBefore *time.Time, at time.Time) (bool, error) {
	updates := map[string]any{
		"available_credits": gorm.Expr("? - ?", clause.Column{Name: "available_credits"}, amount),
		"updated_at":        at.UTC(),
	}
	stmt := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", userID).
		Where(clause.Gte{Column: clause.Column{Name: "available_credits"}, Value: amount})

	var lastUsedCol string
	if feature != "" {
		col, err := domain.LastUsedColumn(feature)
		if err != nil {
			return false, err
		}
		lastUsedCol = col
		updates[lastUsedCol] = at.UTC()
		if usedBefore != nil {
			stmt = stmt.Where(idleSince(lastUsedCol, *usedBefore))
		}
	}

	result := stmt.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	if lastUsedCol == "" {
		return false, nil
	}
	return false, r.cooldownConflict(ctx, db, userID, lastUsedCol, usedBefore)
}

func (r *repo) AddCredits(ctx context.Context, db *gorm.DB, userID string, amount int64, purchased bool, at time.Time) (bool, error) {
	updates := map[string]any{
		"available_credits": gorm.Expr("? + ?", clause.Column{Name: "available_credits"}, amount),
		"updated_at":        at.UTC(),
	}
	if purchased {
		updates["lifetime_credits_purchased"] = gorm.Expr("? + ?", clause.Column{Name: "lifetime_credits_purchased"}, amount)
	}

	result := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TouchLastUsed stamps the feature's last-used time without metering the call.
func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, userID string, feature featuredomain.Code, usedBefore *time.Time, at time.Time) error {
	lastUsedCol, err := domain.LastUsedColumn(feature)
	if err != nil {
		return err
	}
	stmt := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", userID)
	if usedBefore != nil {
		stmt = stmt.Where(idleSince(lastUsedCol, *usedBefore))
	}
	result := stmt.Updates(map[string]any{
		lastUsedCol:  at.UTC(),
		"updated_at": at.UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return r.cooldownConflict(ctx, db, userID, lastUsedCol, usedBefore)
}

func (r *repo) MarkGrandfathered(ctx context.Context, db *gorm.DB, userID string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"is_grandfathered": true,
			"updated_at":       at.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetPartnership(ctx context.Context, db *gorm.DB, userID string, partnershipID *string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"partnership_id": partnershipID,
			"updated_at":     at.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func idleSince(lastUsedCol string, usedBefore time.Time) clause.Expression {
	column := clause.Column{Name: lastUsedCol}
	return clause.Or(
		clause.Eq{Column: column, Value: nil},
		clause.Lte{Column: column, Value: usedBefore.UTC()},
	)
}

// cooldownConflict tells a stamp refused by the cooldown condition apart from one refused
// for any other reason.
func (r *repo) cooldownConflict(ctx context.Context, db *gorm.DB, userID, lastUsedCol string, usedBefore *time.Time) error {
	if usedBefore == nil {
		return nil
	}
	var cooling int64
	err := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ?", userID).
		Where(clause.Gt{Column: clause.Column{Name: lastUsedCol}, Value: usedBefore.UTC()}).
		Count(&cooling).Error
	if err != nil {
		return err
	}
	if cooling > 0 {
		return domain.ErrCooldownActive
	}
	return nil
}
