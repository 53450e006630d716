package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("feature", "ai_search"),
		attribute.String("user_id", "456"),
		attribute.String("outcome", "allowed"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "feature" && attrs[1].Key != "feature" {
		t.Fatalf("expected feature to be retained")
	}
	if attrs[0].Key != "outcome" && attrs[1].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}

func TestRecordAdmissionDecision(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "meterguard-test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAdmissionDecision(ctx, "ai_search", "allowed", "free")
	m.RecordAdmissionDecision(ctx, "ai_search", "allowed", "free")
	m.RecordCreditsDebited(ctx, "ai_grant_writing", 5)
	m.RecordCreditsDebited(ctx, "ai_grant_writing", 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				sums[md.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), sums["meterguard_admission_decisions_total"])
	assert.Equal(t, int64(5), sums["meterguard_credits_debited_total"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAdmissionDecision(context.Background(), "ai_search", "allowed", "free")
		m.RecordAuditWriteFailure(context.Background(), "allowed")
	})
}
