package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meterguard/internal/admission"
	"github.com/smallbiznis/meterguard/internal/audit"
	"github.com/smallbiznis/meterguard/internal/authorization"
	"github.com/smallbiznis/meterguard/internal/clock"
	"github.com/smallbiznis/meterguard/internal/config"
	"github.com/smallbiznis/meterguard/internal/cooldown"
	"github.com/smallbiznis/meterguard/internal/feature"
	"github.com/smallbiznis/meterguard/internal/ledger"
	"github.com/smallbiznis/meterguard/internal/migration"
	"github.com/smallbiznis/meterguard/internal/observability"
	"github.com/smallbiznis/meterguard/internal/quota"
	"github.com/smallbiznis/meterguard/internal/ratelimit"
	"github.com/smallbiznis/meterguard/internal/server"
	"github.com/smallbiznis/meterguard/internal/usagerecord"
	"github.com/smallbiznis/meterguard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Usage governance
		feature.Module,
		usagerecord.Module,
		ratelimit.Module,
		cooldown.Module,
		quota.Module,
		ledger.Module,
		audit.Module,
		admission.Module,

		// Transport
		authorization.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNodeID)
}
