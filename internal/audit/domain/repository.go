package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *UsageAuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*UsageAuditLog, error)
}
