package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, attr := range span.Attributes() {
		out[attr.Key] = attr.Value
	}
	return out
}

func TestGinMiddleware_TagsAdmissionSpans(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/api/v1/features/:feature/admit", func(c *gin.Context) {
		c.Set("feature", "ai_search")
		c.Set("outcome", "quota_exceeded")
		c.Status(http.StatusPaymentRequired)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/features/ai_search/admit", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/features/:feature/admit", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "ai_search", attrs["feature"].AsString())
	assert.Equal(t, "quota_exceeded", attrs["outcome"].AsString())
	assert.Equal(t, int64(http.StatusPaymentRequired), attrs["http.status_code"].AsInt64())
}

func TestGinMiddleware_ServerErrorsFailTheSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: relation usage_records does not exist"))
		c.Status(http.StatusServiceUnavailable)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	for _, attr := range spans[0].Events()[0].Attributes {
		assert.NotContains(t, attr.Value.Emit(), "usage_records")
	}
	assert.Equal(t, "GET unmatched", spans[1].Name())
}
