package domain

import (
	"context"
	"errors"
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
)

type Service interface {
	// Evaluate rolls the monthly window over when due and resolves the effective limit.
	Evaluate(ctx context.Context, userID string, feature featuredomain.Code, now time.Time) (Evaluation, error)
	// Consume counts one call against the evaluated allowance. It returns false when a
	// concurrent call took the last unit first, and usagerecord ErrCooldownActive when one
	// stamped the feature inside its cooldown.
	Consume(ctx context.Context, eval Evaluation, now time.Time) (bool, error)
	// Project evaluates every feature in memory without writing anything.
	Project(ctx context.Context, record usagerecorddomain.UsageRecord, now time.Time) (Projection, error)

	SetInstitutionalLimit(ctx context.Context, req SetLimitRequest) (*InstitutionalLimit, error)
	ListInstitutionalLimits(ctx context.Context, partnershipID string) ([]InstitutionalLimit, error)
}

type SetLimitRequest struct {
	PartnershipID string `json:"-"`
	Feature       string `json:"feature"`
	MonthlyLimit  int64  `json:"monthly_limit"`
}

var (
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidPartnership = errors.New("invalid_partnership")
	ErrInvalidLimit       = errors.New("invalid_monthly_limit")
)
