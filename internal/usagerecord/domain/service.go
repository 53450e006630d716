package domain

import (
	"context"
	"errors"
)

// Service provisions usage records on behalf of external processes.
type Service interface {
	Get(ctx context.Context, userID string) (*UsageRecord, error)
	MarkGrandfathered(ctx context.Context, userID string) (*UsageRecord, error)
	AssignPartnership(ctx context.Context, userID string, partnershipID *string) (*UsageRecord, error)
}

var (
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidPartnership = errors.New("invalid_partnership")
	ErrNotFound           = errors.New("usage_record_not_found")
	ErrCooldownActive     = errors.New("cooldown_active")
)
