package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for page sessions.
type Metrics struct {
	Active    prometheus.Gauge
	Opened    prometheus.Counter
	Closed    *prometheus.CounterVec
	Signals   *prometheus.CounterVec
	Rejected  *prometheus.CounterVec
	ApplyTime prometheus.Histogram
}

// New registers the session metrics with reg; nil leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Active: f.NewGauge(prometheus.GaugeOpts{
			Name: "sitepulse_sessions_active",
			Help: "Page sessions currently held in memory",
		}),
		Opened: f.NewCounter(prometheus.CounterOpts{
			Name: "sitepulse_sessions_opened_total",
			Help: "Page sessions created",
		}),
		Closed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_sessions_closed_total",
			Help: "Page sessions closed, by reason",
		}, []string{"reason"}), // reason: "unload", "client", "idle", "shutdown"
		Signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_signals_applied_total",
			Help: "Browser signals applied to sessions, by type",
		}, []string{"type"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_signal_batches_rejected_total",
			Help: "Signal batches rejected before reaching a session",
		}, []string{"reason"}),
		ApplyTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitepulse_signal_batch_apply_seconds",
			Help:    "Time spent applying one signal batch",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.Opened.Inc()
		m.Active.Inc()
	}
}

func (m *Metrics) SessionClosed(reason string) {
	if m != nil {
		m.Closed.WithLabelValues(reason).Inc()
		m.Active.Dec()
	}
}

func (m *Metrics) IncrementSignal(signalType string) {
	if m != nil {
		m.Signals.WithLabelValues(signalType).Inc()
	}
}

func (m *Metrics) IncrementRejected(reason string) {
	if m != nil {
		m.Rejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveApply(seconds float64) {
	if m != nil {
		m.ApplyTime.Observe(seconds)
	}
}
