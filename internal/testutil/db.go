// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Schema mirrors the postgres migrations in a form SQLite accepts.
var Schema = []string{
	`CREATE TABLE usage_records (
		user_id TEXT PRIMARY KEY,
		period_start DATETIME NOT NULL,
		period_end DATETIME NOT NULL,
		search_count INTEGER NOT NULL DEFAULT 0 CHECK (search_count >= 0),
		analysis_count INTEGER NOT NULL DEFAULT 0 CHECK (analysis_count >= 0),
		grant_writing_count INTEGER NOT NULL DEFAULT 0 CHECK (grant_writing_count >= 0),
		synthesis_count INTEGER NOT NULL DEFAULT 0 CHECK (synthesis_count >= 0),
		search_last_used_at DATETIME,
		analysis_last_used_at DATETIME,
		grant_writing_last_used_at DATETIME,
		synthesis_last_used_at DATETIME,
		hourly_count INTEGER NOT NULL DEFAULT 0,
		hourly_reset_at DATETIME NOT NULL,
		daily_count INTEGER NOT NULL DEFAULT 0,
		daily_reset_at DATETIME NOT NULL,
		available_credits INTEGER NOT NULL DEFAULT 0 CHECK (available_credits >= 0),
		lifetime_credits_purchased INTEGER NOT NULL DEFAULT 0 CHECK (lifetime_credits_purchased >= 0),
		is_grandfathered BOOLEAN NOT NULL DEFAULT 0,
		partnership_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE institutional_limits (
		partnership_id TEXT NOT NULL,
		feature TEXT NOT NULL,
		monthly_limit INTEGER NOT NULL CHECK (monthly_limit >= -1),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (partnership_id, feature)
	)`,
	`CREATE TABLE credit_transactions (
		id INTEGER PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		balance_after INTEGER NOT NULL CHECK (balance_after >= 0),
		reason TEXT NOT NULL,
		feature TEXT,
		audit_log_id INTEGER,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX idx_credit_transactions_user ON credit_transactions (user_id, created_at)`,
	`CREATE TABLE usage_audit_logs (
		id INTEGER PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		feature TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		credits_charged INTEGER NOT NULL DEFAULT 0,
		free BOOLEAN NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX idx_usage_audit_logs_user ON usage_audit_logs (user_id, created_at)`,
}

// OpenSQLite returns an in-memory database private to t with the full schema applied. The
// pool holds a single connection so transactions serialize the way row locks would.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", unsafeName.ReplaceAllString(t.Name(), "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}
