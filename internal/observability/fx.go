package observability

import (
	"github.com/smallbiznis/meterguard/internal/observability/logger"
	"github.com/smallbiznis/meterguard/internal/observability/metrics"
	"github.com/smallbiznis/meterguard/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		NewConfig,
		Config.LoggerConfig,
		Config.TracingConfig,
		Config.MetricsConfig,
	),
	fx.Provide(
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.StoreWithConfig,
	),
	// the tracer provider is only consumed through the otel globals
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
