// Package metrics defines the Prometheus metrics emitted by the portal BFF.
//
// Naming follows Prometheus conventions: a portal_ prefix, _total for counters
// and _seconds for duration histograms. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obserrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds every collector the BFF registers.
type Metrics struct {
	BackendCalls        *prometheus.CounterVec
	BackendCallDuration *prometheus.HistogramVec
	AuthEvents          *prometheus.CounterVec
	AccessDenied        *prometheus.CounterVec
	AuditDropped        prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
// A nil reg leaves them unregistered, which tests use to read values directly.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BackendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_backend_calls_total",
				Help: "Total signed backend calls by action and outcome code.",
			},
			[]string{"action", "outcome", "error_class"},
		),
		BackendCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_backend_call_duration_seconds",
				Help:    "Duration of signed backend calls in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"action"},
		),
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_auth_events_total",
				Help: "Total authentication events by event and result.",
			},
			[]string{"event", "result"},
		),
		AccessDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_access_denied_total",
				Help: "Total permission denials by action.",
			},
			[]string{"action"},
		),
		AuditDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_audit_dropped_total",
				Help: "Total audit events dropped because the queue was full or a sink failed.",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total HTTP requests by method and status code.",
			},
			[]string{"method", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.BackendCalls,
			m.BackendCallDuration,
			m.AuthEvents,
			m.AccessDenied,
			m.AuditDropped,
			m.HTTPRequests,
			m.HTTPDuration,
		)
	}
	return m
}

// BackendCallMetric captures one backend call for emission.
type BackendCallMetric struct {
	Action   string
	Outcome  string // "ok" or the normalized error code
	Duration time.Duration
	Err      error
}

// ObserveBackendCall records a backend call.
func (m *Metrics) ObserveBackendCall(in BackendCallMetric) {
	if m == nil {
		return
	}
	class := ""
	if in.Err != nil {
		class = obserrors.Classify(in.Err)
	}
	m.BackendCalls.WithLabelValues(in.Action, in.Outcome, class).Inc()
	if in.Duration > 0 {
		m.BackendCallDuration.WithLabelValues(in.Action).Observe(in.Duration.Seconds())
	}
}

// AuthEvent counts a login or logout outcome.
func (m *Metrics) AuthEvent(event, result string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, result).Inc()
}

// Denied counts a permission denial.
func (m *Metrics) Denied(action string) {
	if m == nil {
		return
	}
	m.AccessDenied.WithLabelValues(action).Inc()
}

// AuditDrop counts a dropped audit event.
func (m *Metrics) AuditDrop() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
