// Package metrics holds the Prometheus collectors for the report client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all report client metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics (display shell)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Report service metrics
	ReportRequestsTotal   *prometheus.CounterVec
	ReportRequestDuration *prometheus.HistogramVec
	ReportPayloadBytes    *prometheus.HistogramVec

	// Resource handle metrics
	HandlesOutstanding prometheus.Gauge
	HandlesReleased    *prometheus.CounterVec

	// Delivery metrics
	DeliveriesTotal *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates a Metrics instance on its own registry, so tests can build
// as many as they like without duplicate registration panics.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of shell HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Shell HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	m.ReportRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_requests_total",
			Help:      "Report service requests by format, mode and outcome",
		},
		[]string{"format", "mode", "outcome"},
	)
	m.ReportRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_request_duration_seconds",
			Help:      "Report service request duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"format", "mode"},
	)
	m.ReportPayloadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_payload_bytes",
			Help:      "Size of report payloads received",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"format"},
	)

	m.HandlesOutstanding = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "handles_outstanding",
			Help:      "Resource handles wrapped and not yet released",
		},
	)
	m.HandlesReleased = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handles_released_total",
			Help:      "Resource handles released, by reason",
		},
		[]string{"reason"},
	)

	m.DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery mode invocations by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReportRequestsTotal,
		m.ReportRequestDuration,
		m.ReportPayloadBytes,
		m.HandlesOutstanding,
		m.HandlesReleased,
		m.DeliveriesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a served shell request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordReportRequest records one report service round trip.
func (m *Metrics) RecordReportRequest(format, mode string, size int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.ReportRequestsTotal.WithLabelValues(format, mode, outcome).Inc()
	m.ReportRequestDuration.WithLabelValues(format, mode).Observe(duration.Seconds())
	if err == nil {
		m.ReportPayloadBytes.WithLabelValues(format).Observe(float64(size))
	}
}

// SetHandlesOutstanding publishes the outstanding handle count.
func (m *Metrics) SetHandlesOutstanding(n int) {
	if m == nil {
		return
	}
	m.HandlesOutstanding.Set(float64(n))
}

// RecordRelease counts a handle release.
func (m *Metrics) RecordRelease(reason string) {
	if m == nil {
		return
	}
	m.HandlesReleased.WithLabelValues(reason).Inc()
}

// RecordDelivery counts a delivery mode outcome.
func (m *Metrics) RecordDelivery(mode string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.DeliveriesTotal.WithLabelValues(mode, outcome).Inc()
}

// SetCircuitBreakerState publishes a breaker state.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
