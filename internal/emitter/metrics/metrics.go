package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for event dispatch.
type Metrics struct {
	Tracked         *prometheus.CounterVec
	Suppressed      *prometheus.CounterVec
	BackendFailures *prometheus.CounterVec
	BackendSkipped  *prometheus.CounterVec
	BreakerOpen     *prometheus.GaugeVec
}

// New registers the emitter metrics with reg; nil leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Tracked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_events_tracked_total",
			Help: "Events dispatched to back-ends, by event name",
		}, []string{"event"}),
		Suppressed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_events_suppressed_total",
			Help: "Emitter calls dropped because analytics consent was not granted",
		}, []string{"operation"}),
		BackendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_backend_failures_total",
			Help: "Back-end calls that returned an error or panicked",
		}, []string{"backend", "operation", "kind"}), // kind: "error", "panic"
		BackendSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_backend_skipped_total",
			Help: "Back-end calls skipped while the circuit breaker was open",
		}, []string{"backend"}),
		BreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sitepulse_backend_breaker_open",
			Help: "1 while the back-end circuit breaker is open",
		}, []string{"backend"}),
	}
}

func (m *Metrics) IncrementTracked(event string) {
	if m != nil {
		m.Tracked.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) IncrementSuppressed(operation string) {
	if m != nil {
		m.Suppressed.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) IncrementBackendFailure(backend, operation, kind string) {
	if m != nil {
		m.BackendFailures.WithLabelValues(backend, operation, kind).Inc()
	}
}

func (m *Metrics) IncrementBackendSkipped(backend string) {
	if m != nil {
		m.BackendSkipped.WithLabelValues(backend).Inc()
	}
}

// SetBreakerOpen records the breaker state for a back-end.
func (m *Metrics) SetBreakerOpen(backend string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.WithLabelValues(backend).Set(v)
}
