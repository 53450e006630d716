package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Reason explains why a balance moved.
type Reason string

const (
	ReasonFeatureUsage Reason = "feature_usage"
	ReasonPurchase     Reason = "purchase"
	ReasonGrant        Reason = "grant"
)

// CreditTransaction is an immutable balance movement. Debits carry a negative amount.
type CreditTransaction struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID       string        `gorm:"type:text;not null;index" json:"user_id"`
	Amount       int64         `gorm:"not null" json:"amount"`
	BalanceAfter int64         `gorm:"not null" json:"balance_after"`
	Reason       Reason        `gorm:"type:text;not null" json:"reason"`
	Feature      *string       `gorm:"type:text" json:"feature,omitempty"`
	AuditLogID   *snowflake.ID `json:"audit_log_id,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (CreditTransaction) TableName() string { return "credit_transactions" }
