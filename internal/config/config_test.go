package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("RATE_LIMIT_BACKEND", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, RateLimitBackendStore, cfg.RateLimit.Backend)
	assert.Equal(t, int64(1), cfg.SnowflakeNodeID)
	assert.Equal(t, 0.1, cfg.Observability.SamplingRatio)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "SQLite")
	t.Setenv("RATE_LIMIT_BACKEND", " Redis ")
	t.Setenv("DATABASE_AUTO_MIGRATE", "off")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "not-a-number")
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, RateLimitBackendRedis, cfg.RateLimit.Backend)
	assert.False(t, cfg.DBAutoMigrate)
	assert.Equal(t, 50, cfg.DBMaxOpenConn)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Observability.OtelEnabled)
	assert.Equal(t, 0.25, cfg.Observability.SamplingRatio)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
}
