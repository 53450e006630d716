package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Admit never returns an error; every failure is a Decision.
	Admit(ctx context.Context, userID string, feature string) Decision
	GetUsageStatus(ctx context.Context, userID string) (UsageStatus, error)
}

var ErrInvalidUser = errors.New("invalid_user")
