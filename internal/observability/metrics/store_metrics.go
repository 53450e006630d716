package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/meterguard/pkg/db"
)

const (
	StoreOperationEnsureRecord = "ensure_record"
	StoreOperationRateLimit    = "rate_limit"
	StoreOperationLoadRecord   = "load_record"
	StoreOperationQuota        = "quota"
	StoreOperationIncrement    = "increment"
	StoreOperationCreditDebit  = "credit_debit"
	StoreOperationAuditWrite   = "audit_write"
)

// StoreMetrics captures persistence health on the admission path.
type StoreMetrics struct {
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	systemFailures    *prometheus.CounterVec
	durationObserver  map[string]prometheus.Observer
}

var (
	storeMetricsOnce sync.Once
	storeMetrics     *StoreMetrics
)

// Store returns the singleton store metrics registered on the default registry.
func Store() *StoreMetrics {
	return StoreWithConfig(Config{})
}

// StoreWithConfig returns the singleton store metrics using config labels.
func StoreWithConfig(cfg Config) *StoreMetrics {
	storeMetricsOnce.Do(func() {
		storeMetrics = newStoreMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return storeMetrics
}

// ResetStoreMetricsForTest resets the store metrics singleton for tests.
func ResetStoreMetricsForTest() {
	storeMetricsOnce = sync.Once{}
	storeMetrics = nil
}

func newStoreMetrics(registerer prometheus.Registerer, cfg Config) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "meterguard"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "meterguard_store_operation_duration_seconds",
		Help:        "Latency of usage store operations on the admission path, lock waits included.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"operation"})
	operationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "meterguard_store_operation_errors_total",
		Help:        "Usage store errors by operation and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	systemFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "meterguard_admission_system_failures_total",
		Help:        "Admissions answered with system_failure, by the step that failed.",
		ConstLabels: constLabels,
	}, []string{"operation"})

	registerer.MustRegister(operationDuration, operationErrors, systemFailures)

	durationObserver := map[string]prometheus.Observer{}
	for _, op := range []string{
		StoreOperationEnsureRecord,
		StoreOperationRateLimit,
		StoreOperationLoadRecord,
		StoreOperationQuota,
		StoreOperationIncrement,
		StoreOperationCreditDebit,
		StoreOperationAuditWrite,
	} {
		durationObserver[op] = operationDuration.WithLabelValues(op)
	}

	return &StoreMetrics{
		operationDuration: operationDuration,
		operationErrors:   operationErrors,
		systemFailures:    systemFailures,
		durationObserver:  durationObserver,
	}
}

// ObserveOperation records the latency of a store operation.
func (m *StoreMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	if observer, ok := m.durationObserver[operation]; ok {
		observer.Observe(duration.Seconds())
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncOperationError counts a failed store operation classified by db.FailureReason.
func (m *StoreMetrics) IncOperationError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.operationErrors.WithLabelValues(operation, db.FailureReason(err)).Inc()
}

func (m *StoreMetrics) IncSystemFailure(operation string) {
	if m == nil {
		return
	}
	m.systemFailures.WithLabelValues(operation).Inc()
}
