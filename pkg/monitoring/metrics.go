// Package monitoring exposes Prometheus metrics for the ledger API:
// HTTP traffic, authentication outcomes, and counters over the core
// authorization decisions.
package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Authentication metrics
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status", "service"},
	)

	// Consent decision metrics
	consentChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_checks_total",
			Help: "Total number of consent checks by outcome",
		},
		[]string{"granted", "service"},
	)

	// Proposal lifecycle metrics
	proposalTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposal_transitions_total",
			Help: "Total number of proposal lifecycle transitions",
		},
		[]string{"transition", "service"},
	)

	// Record access metrics
	recordAccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_access_total",
			Help: "Total number of record access attempts",
		},
		[]string{"status", "service"},
	)

	// Core error metrics
	coreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_errors_total",
			Help: "Total number of core operation failures by error kind",
		},
		[]string{"error_type", "service"},
	)

	registerOnce sync.Once
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a metrics collector. Metric registration is
// process-global and happens once regardless of how many collectors exist.
func NewMetricsCollector(serviceName string) *MetricsCollector {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			authAttemptsTotal,
			consentChecksTotal,
			proposalTransitionsTotal,
			recordAccessTotal,
			coreErrorsTotal,
		)
	})

	return &MetricsCollector{serviceName: serviceName}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordAuthAttempt records an authentication attempt by outcome
func (m *MetricsCollector) RecordAuthAttempt(status string) {
	authAttemptsTotal.WithLabelValues(status, m.serviceName).Inc()
}

// RecordConsentCheck records one consent decision
func (m *MetricsCollector) RecordConsentCheck(granted bool) {
	consentChecksTotal.WithLabelValues(strconv.FormatBool(granted), m.serviceName).Inc()
}

// RecordProposalTransition records one proposal lifecycle transition
// (created, approved, rejected, executed, expired).
func (m *MetricsCollector) RecordProposalTransition(transition string) {
	proposalTransitionsTotal.WithLabelValues(transition, m.serviceName).Inc()
}

// RecordRecordAccess records one record access attempt by outcome
func (m *MetricsCollector) RecordRecordAccess(status string) {
	recordAccessTotal.WithLabelValues(status, m.serviceName).Inc()
}

// RecordCoreError records a core operation failure by error kind
func (m *MetricsCollector) RecordCoreError(errorType string) {
	coreErrorsTotal.WithLabelValues(errorType, m.serviceName).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(wrapper.statusCode), time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
