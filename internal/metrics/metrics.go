// Package metrics exposes Prometheus instrumentation for the credential
// core. Metrics are registered lazily so library consumers that never call
// InitMetrics pay nothing and pollute no registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	cacheRequestsTotal *prometheus.CounterVec

	// Access control metrics
	authorizationTotal *prometheus.CounterVec

	// Provider metrics
	providerOperationDuration *prometheus.HistogramVec

	// Audit metrics
	auditEventsTotal *prometheus.CounterVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Recorder provides methods to record credential-core metrics.
// All methods are no-ops until InitMetrics has run.
type Recorder struct{}

// NewRecorder creates a new Recorder instance.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// InitMetrics initializes all Prometheus metrics.
// Call once at startup if metrics are enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credvault_cache_requests_total",
				Help: "Credential cache lookups by result",
			},
			[]string{"result"},
		)

		authorizationTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credvault_authorization_total",
				Help: "Authorization decisions by outcome",
			},
			[]string{"operation", "decision"},
		)

		providerOperationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credvault_provider_operation_duration_seconds",
				Help:    "Duration of provider operations in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"provider", "operation"},
		)

		auditEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credvault_audit_events_total",
				Help: "Audit events written by outcome",
			},
			[]string{"outcome"},
		)

		metricsRegistered = true
	})
}

// RecordCacheRequest records a cache lookup result: "hit", "miss", "expired".
func (r *Recorder) RecordCacheRequest(result string) {
	if !metricsRegistered || cacheRequestsTotal == nil {
		return
	}
	cacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordAuthorization records an authorization decision:
// "allowed", "denied", "rate_limited".
func (r *Recorder) RecordAuthorization(operation, decision string) {
	if !metricsRegistered || authorizationTotal == nil {
		return
	}
	authorizationTotal.WithLabelValues(operation, decision).Inc()
}

// RecordProviderOperation records a provider call's duration.
func (r *Recorder) RecordProviderOperation(provider, operation string, durationSeconds float64) {
	if !metricsRegistered || providerOperationDuration == nil {
		return
	}
	providerOperationDuration.WithLabelValues(provider, operation).Observe(durationSeconds)
}

// RecordAuditEvent records an audit event write by outcome.
func (r *Recorder) RecordAuditEvent(outcome string) {
	if !metricsRegistered || auditEventsTotal == nil {
		return
	}
	auditEventsTotal.WithLabelValues(outcome).Inc()
}
