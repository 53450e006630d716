package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Get(ctx context.Context, db *gorm.DB, partnershipID, feature string) (*InstitutionalLimit, error)
	ListByPartnership(ctx context.Context, db *gorm.DB, partnershipID string) ([]InstitutionalLimit, error)
	Upsert(ctx context.Context, db *gorm.DB, limit *InstitutionalLimit) error
}
