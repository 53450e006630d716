package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID   string
	BeforeID *snowflake.ID
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *CreditTransaction) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*CreditTransaction, error)
}
