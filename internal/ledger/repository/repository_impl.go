package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meterguard/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.CreditTransaction) error {
	if txn == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (
			id, user_id, amount, balance_after, reason, feature, audit_log_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(txn.ID),
		txn.UserID,
		txn.Amount,
		txn.BalanceAfter,
		string(txn.Reason),
		txn.Feature,
		nullableID(txn.AuditLogID),
		txn.CreatedAt.UTC(),
	).Error
}

// List returns up to Limit+1 rows, newest first, so callers can detect another page.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.CreditTransaction, error) {
	var txns []*domain.CreditTransaction
	stmt := db.WithContext(ctx).Model(&domain.CreditTransaction{}).
		Where("user_id = ?", strings.TrimSpace(filter.UserID))

	if filter.BeforeID != nil {
		stmt = stmt.Where("id < ?", int64(*filter.BeforeID))
	}

	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func nullableID(id *snowflake.ID) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}
