package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/meterguard/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.UsageAuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_audit_logs (
			id, user_id, feature, outcome, reason, source,
			credits_charged, free, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(entry.ID),
		entry.UserID,
		entry.Feature,
		string(entry.Outcome),
		entry.Reason,
		entry.Source,
		entry.CreditsCharged,
		entry.Free,
		entry.Metadata,
		entry.CreatedAt.UTC(),
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.UsageAuditLog, error) {
	var logs []*domain.UsageAuditLog
	stmt := db.WithContext(ctx).Model(&domain.UsageAuditLog{})

	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		stmt = stmt.Where("user_id = ?", userID)
	}
	if feature := strings.TrimSpace(filter.Feature); feature != "" {
		stmt = stmt.Where("feature = ?", feature)
	}
	if outcome := strings.TrimSpace(filter.Outcome); outcome != "" {
		stmt = stmt.Where("outcome = ?", outcome)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if filter.BeforeID != nil {
		stmt = stmt.Where("id < ?", int64(*filter.BeforeID))
	}

	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
