package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	ReasonLockTimeout          = "lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonCheckViolation       = "check_violation"
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonConnection           = "connection"
	ReasonUnknown              = "unknown"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if hasPGCode(err, "23505") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// FailureReason maps a storage error to a low-cardinality label for metrics and audit entries.
func FailureReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return ReasonLockTimeout
	}
	if hasPGCode(err, "40001") || hasPGCode(err, "40P01") {
		return ReasonSerializationFailure
	}
	if IsDuplicateKeyErr(err) {
		return ReasonUniqueViolation
	}
	if hasPGCode(err, "23514") || strings.Contains(err.Error(), "CHECK constraint failed") {
		return ReasonCheckViolation
	}
	if errors.Is(err, gorm.ErrInvalidDB) || isConnectionClass(err) {
		return ReasonConnection
	}
	return ReasonUnknown
}

// IsRetryable reports whether the same statement may succeed on a second attempt.
func IsRetryable(err error) bool {
	switch FailureReason(err) {
	case ReasonLockTimeout, ReasonSerializationFailure, ReasonConnection:
		return true
	default:
		return false
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// isConnectionClass matches SQLSTATE class 08.
func isConnectionClass(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}
