package migration

import (
	"fmt"

	auditdomain "github.com/smallbiznis/meterguard/internal/audit/domain"
	"github.com/smallbiznis/meterguard/internal/config"
	ledgerdomain "github.com/smallbiznis/meterguard/internal/ledger/domain"
	quotadomain "github.com/smallbiznis/meterguard/internal/quota/domain"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"github.com/smallbiznis/meterguard/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Run brings the schema up to date. Postgres uses the versioned SQL files; the other dialects
// are for local use and rely on gorm AutoMigrate when enabled.
func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	dbCfg := db.ConfigFrom(cfg)
	log = log.Named("migration")

	if dbCfg.Type == db.TypePostgres || dbCfg.Type == "" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		version, err := applyVersioned(sqlDB, log)
		if err != nil {
			return err
		}
		log.Info("postgres migrations applied", zap.Uint("schema_version", version))
		return nil
	}

	if !dbCfg.AutoMigrate {
		log.Info("auto migrate disabled", zap.String("type", dbCfg.Type))
		return nil
	}
	if err := conn.AutoMigrate(
		&usagerecorddomain.UsageRecord{},
		&quotadomain.InstitutionalLimit{},
		&ledgerdomain.CreditTransaction{},
		&auditdomain.UsageAuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("schema auto migrated", zap.String("type", dbCfg.Type))
	return nil
}

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)
