package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/annonymususer90/my99exch/api/schemas"
)

const namespace = "my99exch"

// Metrics are the coordinator's prometheus collectors.
type Metrics struct {
	Operations     *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	AdmissionWait  prometheus.Histogram
	Relogins       *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	AuditFailures  prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Business operations by terminal result.",
		}, []string{"operation", "result"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time from admission to terminal state.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		}, []string{"operation"}),
		AdmissionWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_wait_seconds",
			Help:      "Time requests spent waiting for a busy site.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		Relogins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relogins_total",
			Help:      "Re-authentication attempts triggered by the admission gate.",
		}, []string{"result"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Registered site sessions.",
		}),
		AuditFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Audit entries that could not be recorded.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
	}
}

// ObserveOperation records one terminal operation.
func (m *Metrics) ObserveOperation(op schemas.Operation, out schemas.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "succeeded"
	if !out.Succeeded {
		result = string(out.Kind)
		if result == "" {
			result = string(schemas.KindClassifiedFailure)
		}
	}
	m.Operations.WithLabelValues(string(op), result).Inc()
	m.Duration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

// ObserveRelogin records a gate-triggered login attempt.
func (m *Metrics) ObserveRelogin(succeeded bool) {
	if m == nil {
		return
	}
	if succeeded {
		m.Relogins.WithLabelValues("succeeded").Inc()
		return
	}
	m.Relogins.WithLabelValues("failed").Inc()
}

// ObserveAuditFailure counts an audit entry that could not be persisted.
func (m *Metrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}

// SetActiveSessions records the number of registered sessions.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
