package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meterguard/pkg/db/pagination"
)

// Entry describes a decision to record. A zero ID is replaced with a generated one.
type Entry struct {
	ID             snowflake.ID
	UserID         string
	Feature        string
	Outcome        Outcome
	Reason         string
	Source         string
	CreditsCharged int64
	Free           bool
	Metadata       map[string]any
	At             time.Time
}

type ListAuditLogRequest struct {
	pagination.Pagination
	UserID  string
	Feature string
	Outcome string
	StartAt *time.Time
	EndAt   *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []UsageAuditLog `json:"audit_logs"`
}

type Service interface {
	// NextID reserves an identifier so other rows can reference the entry before it is written.
	NextID() snowflake.ID
	Record(ctx context.Context, entry Entry) (*UsageAuditLog, error)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidOutcome   = errors.New("invalid_outcome")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
