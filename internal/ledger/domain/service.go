package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	"github.com/smallbiznis/meterguard/pkg/db/pagination"
)

type Service interface {
	// Debit charges amount credits for one feature call, all or nothing.
	Debit(ctx context.Context, req DebitRequest) (*CreditTransaction, error)
	Grant(ctx context.Context, req GrantRequest) (*CreditTransaction, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

type DebitRequest struct {
	UserID     string
	Amount     int64
	Feature    featuredomain.Code
	AuditLogID *snowflake.ID
	At         time.Time

	// UsedBefore, when set, refuses the debit if the feature was used after it.
	UsedBefore *time.Time
}

type GrantRequest struct {
	UserID string `json:"-"`
	Amount int64  `json:"amount"`
	Reason Reason `json:"reason"`
}

type ListTransactionsRequest struct {
	UserID string
	pagination.Pagination
}

type ListTransactionsResponse struct {
	Transactions []*CreditTransaction  `json:"transactions"`
	PageInfo     *pagination.PageInfo `json:"page_info"`
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidReason       = errors.New("invalid_reason")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInsufficientCredits = errors.New("insufficient_credits")
)

// InsufficientCreditsError reports the balance observed when a debit was refused.
type InsufficientCreditsError struct {
	Needed    int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("%s: needed %d, available %d", ErrInsufficientCredits, e.Needed, e.Available)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}
