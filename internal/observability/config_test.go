package observability

import (
	"testing"

	"github.com/smallbiznis/meterguard/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(config.Config{
		AppName:      "meterguard",
		Environment:  "Production",
		AppVersion:   " 1.2.3 ",
		OTLPEndpoint: " collector:4318 ",
		Observability: config.ObservabilityConfig{
			LogLevel:      "DEBUG",
			LogFormat:     "Console",
			OTLPProtocol:  "http/protobuf",
			SamplingRatio: 0.5,
			OtelEnabled:   true,
		},
	})
	assert.Equal(t, "meterguard", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, "collector:4318", cfg.OtelExporterEndpoint)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.True(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())

	dev := NewConfig(config.Config{Environment: "development", Observability: config.ObservabilityConfig{SamplingRatio: 3}})
	assert.Equal(t, "meterguard", dev.ServiceName)
	assert.Equal(t, "grpc", dev.OtelExporterProtocol)
	assert.Equal(t, 1.0, dev.OtelSamplingRatio)
	assert.False(t, dev.OtelEnabled)
	assert.True(t, dev.Debug())

	assert.Equal(t, 0.1, NewConfig(config.Config{Observability: config.ObservabilityConfig{SamplingRatio: -1}}).OtelSamplingRatio)
}

func TestConfigDerivesComponentConfigs(t *testing.T) {
	cfg := NewConfig(config.Config{
		AppName:      "meterguard",
		Environment:  "staging",
		AppVersion:   "2.0.0",
		OTLPEndpoint: "collector:4317",
		Observability: config.ObservabilityConfig{
			LogLevel:      "info",
			OTLPProtocol:  "grpc",
			SamplingRatio: 0.2,
			OtelEnabled:   true,
		},
	})

	logCfg := cfg.LoggerConfig()
	assert.Equal(t, "staging", logCfg.Environment)
	assert.False(t, logCfg.Debug)
	assert.False(t, logCfg.IncludeStackOnError)
	assert.True(t, logCfg.IncludeCaller)

	traceCfg := cfg.TracingConfig()
	assert.True(t, traceCfg.Enabled)
	assert.Equal(t, "2.0.0", traceCfg.ServiceVersion)
	assert.Equal(t, 0.2, traceCfg.SamplingRatio)

	metricsCfg := cfg.MetricsConfig()
	assert.Equal(t, "collector:4317", metricsCfg.ExporterEndpoint)
	assert.Equal(t, "grpc", metricsCfg.ExporterProtocol)
}
