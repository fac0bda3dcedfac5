package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consent module.
type Metrics struct {
	Decisions    *prometheus.CounterVec
	Clears       prometheus.Counter
	ReadFailures *prometheus.CounterVec
}

// New registers the consent metrics with reg. A nil reg creates unregistered
// collectors, which keeps tests free of global registry collisions.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_consent_decisions_total",
			Help: "Consent decisions recorded, by granted categories",
		}, []string{"analytics", "marketing"}),
		Clears: f.NewCounter(prometheus.CounterOpts{
			Name: "sitepulse_consent_clears_total",
			Help: "Consent records removed to re-prompt the visitor",
		}),
		ReadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_consent_read_failures_total",
			Help: "Consent reads that degraded to undecided",
		}, []string{"reason"}), // reason: "unavailable", "corrupt"
	}
}

// IncrementDecision records an explicit decision.
func (m *Metrics) IncrementDecision(analytics, marketing bool) {
	if m != nil {
		m.Decisions.WithLabelValues(strconv.FormatBool(analytics), strconv.FormatBool(marketing)).Inc()
	}
}

func (m *Metrics) IncrementClear() {
	if m != nil {
		m.Clears.Inc()
	}
}

// IncrementReadFailure records a read that fell back to undecided.
func (m *Metrics) IncrementReadFailure(reason string) {
	if m != nil {
		m.ReadFailures.WithLabelValues(reason).Inc()
	}
}
