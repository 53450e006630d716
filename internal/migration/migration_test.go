package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/meterguard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestRun_AutoMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:automigrate?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := config.Config{DBType: "sqlite", DBAutoMigrate: true}
	require.NoError(t, Run(conn, cfg, zap.NewNop()))

	for _, table := range []string{"usage_records", "institutional_limits", "credit_transactions", "usage_audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestRun_SkipsWhenAutoMigrateDisabled(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:noautomigrate?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Run(conn, config.Config{DBType: "sqlite"}, zap.NewNop()))
	assert.False(t, conn.Migrator().HasTable("usage_records"))
}

func TestMigrateLoggerForwardsToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zapMigrateLogger{log: zap.New(core)}

	assert.True(t, l.Verbose())
	l.Printf("Start buffering %d/u %s\n", 3, "credit_transactions")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Start buffering 3/u credit_transactions", logs.All()[0].Message)

	quiet, _ := observer.New(zapcore.InfoLevel)
	assert.False(t, zapMigrateLogger{log: zap.New(quiet)}.Verbose())
}

func TestApplyVersionedNeedsHandle(t *testing.T) {
	_, err := applyVersioned(nil, zap.NewNop())
	assert.Error(t, err)
}
