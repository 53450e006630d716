package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Outcome string

const (
	OutcomeAllowed         Outcome = "allowed"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeInvalidFeature  Outcome = "invalid_feature"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeCooldownActive  Outcome = "cooldown_active"
	OutcomeQuotaExceeded   Outcome = "quota_exceeded"
	OutcomeSystemFailure   Outcome = "system_failure"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAllowed, OutcomeUnauthenticated, OutcomeInvalidFeature, OutcomeRateLimited,
		OutcomeCooldownActive, OutcomeQuotaExceeded, OutcomeSystemFailure:
		return true
	default:
		return false
	}
}

// UsageAuditLog is one admission decision. Rows are never updated.
type UsageAuditLog struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID         string            `gorm:"type:text;not null;default:'';index" json:"user_id"`
	Feature        string            `gorm:"type:text;not null;default:''" json:"feature"`
	Outcome        Outcome           `gorm:"type:text;not null" json:"outcome"`
	Reason         string            `gorm:"type:text;not null;default:''" json:"reason,omitempty"`
	Source         string            `gorm:"type:text;not null;default:''" json:"source,omitempty"`
	CreditsCharged int64             `gorm:"not null;default:0" json:"credits_charged"`
	Free           bool              `gorm:"not null;default:false" json:"free"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (UsageAuditLog) TableName() string { return "usage_audit_logs" }

type ListFilter struct {
	UserID   string
	Feature  string
	Outcome  string
	StartAt  *time.Time
	EndAt    *time.Time
	BeforeID *snowflake.ID
	Limit    int
}
