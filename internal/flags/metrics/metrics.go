package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for flag evaluation.
type Metrics struct {
	Evaluations   *prometheus.CounterVec
	RefreshErrors prometheus.Counter
}

// New registers the flag metrics with reg; nil leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_flag_evaluations_total",
			Help: "Flag lookups by outcome",
		}, []string{"outcome"}), // outcome: "resolved", "no_consent", "not_loaded", "unresolved"
		RefreshErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "sitepulse_flag_refresh_errors_total",
			Help: "Flag fetches that failed during a refresh",
		}),
	}
}

func (m *Metrics) IncrementEvaluation(outcome string) {
	if m != nil {
		m.Evaluations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementRefreshError() {
	if m != nil {
		m.RefreshErrors.Inc()
	}
}
