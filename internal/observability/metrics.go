package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Histogram bucket definitions.
var backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics holds all Prometheus metric instruments for the client.
type Metrics struct {
	// Backend request metrics
	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendCircuitBreakerState prometheus.Gauge

	// Store action metrics
	StoreActionsTotal  *prometheus.CounterVec
	StoreCachedForms   prometheus.Gauge
	StoreCachedRecords prometheus.Gauge

	// Validation metrics
	ValidationFailuresTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formbase_backend_requests_total",
			Help: "Total number of backend requests.",
		}, []string{"method", "resource", "status"}),
		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formbase_backend_request_duration_seconds",
			Help:    "Backend request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"method", "resource"}),
		BackendCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formbase_backend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}),
		StoreActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formbase_store_actions_total",
			Help: "Total number of store actions by outcome.",
		}, []string{"action", "outcome"}),
		StoreCachedForms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formbase_store_cached_forms",
			Help: "Number of forms currently cached.",
		}),
		StoreCachedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formbase_store_cached_records",
			Help: "Number of records currently cached across all forms.",
		}),
		ValidationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formbase_validation_failures_total",
			Help: "Total number of record validation failures by field type.",
		}, []string{"field_type"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BackendRequestsTotal,
			m.BackendRequestDuration,
			m.BackendCircuitBreakerState,
			m.StoreActionsTotal,
			m.StoreCachedForms,
			m.StoreCachedRecords,
			m.ValidationFailuresTotal,
		)
	}
	return m
}
