package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/meterguard/internal/quota/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, partnershipID, feature string) (*domain.InstitutionalLimit, error) {
	var limit domain.InstitutionalLimit
	err := db.WithContext(ctx).
		Where("partnership_id = ? AND feature = ?", partnershipID, feature).
		Take(&limit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &limit, nil
}

func (r *repo) ListByPartnership(ctx context.Context, db *gorm.DB, partnershipID string) ([]domain.InstitutionalLimit, error) {
	var limits []domain.InstitutionalLimit
	err := db.WithContext(ctx).
		Where("partnership_id = ?", partnershipID).
		Order("feature asc").
		Find(&limits).Error
	if err != nil {
		return nil, err
	}
	return limits, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, limit *domain.InstitutionalLimit) error {
	if limit == nil {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "partnership_id"}, {Name: "feature"}},
			DoUpdates: clause.AssignmentColumns([]string{"monthly_limit", "updated_at"}),
		}).
		Create(limit).Error
}
