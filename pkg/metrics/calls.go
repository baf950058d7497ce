package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CallMetrics provides observability for protocol adapter operations.
//
// The interface is optional: adapters accept nil and fall back to a no-op
// implementation with zero overhead.
type CallMetrics interface {
	// RecordCall records a completed call with its procedure name, duration,
	// and outcome.
	RecordCall(procedure string, duration time.Duration, err error)

	// ConnectionOpened increments the active-connection gauge.
	ConnectionOpened()

	// ConnectionClosed decrements the active-connection gauge.
	ConnectionClosed()

	// RecordNotification records a notification push and whether it was
	// delivered.
	RecordNotification(kind string, delivered bool)
}

// callMetrics is the Prometheus implementation of CallMetrics.
type callMetrics struct {
	calls             *prometheus.CounterVec
	callDuration      *prometheus.HistogramVec
	activeConnections prometheus.Gauge
	notifications     *prometheus.CounterVec
}

// NewCallMetrics creates a Prometheus-backed CallMetrics for the given
// adapter protocol ("tcp", "ws").
//
// Returns a no-op implementation when metrics are disabled.
func NewCallMetrics(protocol string) CallMetrics {
	if !IsEnabled() {
		return NoopCallMetrics()
	}

	reg := GetRegistry()
	labels := prometheus.Labels{"protocol": protocol}

	return &callMetrics{
		calls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "catalogd_calls_total",
				Help:        "Total number of handled calls",
				ConstLabels: labels,
			},
			[]string{"procedure", "status"},
		),
		callDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "catalogd_call_duration_seconds",
				Help:        "Duration of handled calls in seconds",
				ConstLabels: labels,
				Buckets:     []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"procedure"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name:        "catalogd_active_connections",
				Help:        "Number of currently open client connections",
				ConstLabels: labels,
			},
		),
		notifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "catalogd_notifications_total",
				Help:        "Total number of owner notifications pushed",
				ConstLabels: labels,
			},
			[]string{"kind", "status"},
		),
	}
}

func (m *callMetrics) RecordCall(procedure string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.calls.WithLabelValues(procedure, status).Inc()
	m.callDuration.WithLabelValues(procedure).Observe(duration.Seconds())
}

func (m *callMetrics) ConnectionOpened() {
	m.activeConnections.Inc()
}

func (m *callMetrics) ConnectionClosed() {
	m.activeConnections.Dec()
}

func (m *callMetrics) RecordNotification(kind string, delivered bool) {
	status := "delivered"
	if !delivered {
		status = "dropped"
	}
	m.notifications.WithLabelValues(kind, status).Inc()
}

// noopCallMetrics discards everything.
type noopCallMetrics struct{}

// NoopCallMetrics returns a CallMetrics that records nothing.
func NoopCallMetrics() CallMetrics {
	return noopCallMetrics{}
}

func (noopCallMetrics) RecordCall(string, time.Duration, error) {}
func (noopCallMetrics) ConnectionOpened()                       {}
func (noopCallMetrics) ConnectionClosed()                       {}
func (noopCallMetrics) RecordNotification(string, bool)         {}
