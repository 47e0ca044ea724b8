package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SagaMetrics counts checkout saga activity. All methods are nil-safe so
// tests can pass a nil collector.
type SagaMetrics struct {
	outcomes       *prometheus.CounterVec
	pending        prometheus.Gauge
	droppedReplies prometheus.Counter
}

func NewSagaMetrics() *SagaMetrics {
	return NewSagaMetricsWith(prometheus.DefaultRegisterer)
}

// NewSagaMetricsWith registers the collectors on the given registerer so
// callers can use an isolated registry.
func NewSagaMetricsWith(reg prometheus.Registerer) *SagaMetrics {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "purchase",
		Subsystem: "saga",
		Name:      "outcomes_total",
		Help:      "Terminal checkout saga outcomes.",
	}, []string{"outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "purchase",
		Subsystem: "saga",
		Name:      "pending",
		Help:      "Checkout sagas awaiting a debit reply.",
	})
	droppedReplies := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "purchase",
		Subsystem: "saga",
		Name:      "dropped_replies_total",
		Help:      "Debit replies with no matching pending saga.",
	})

	reg.MustRegister(outcomes, pending, droppedReplies)
	return &SagaMetrics{outcomes: outcomes, pending: pending, droppedReplies: droppedReplies}
}

func (m *SagaMetrics) SagaStarted() {
	if m == nil {
		return
	}
	m.pending.Inc()
}

func (m *SagaMetrics) SagaFinished(outcome string) {
	if m == nil {
		return
	}
	m.pending.Dec()
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *SagaMetrics) ReplyDropped() {
	if m == nil {
		return
	}
	m.droppedReplies.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
