// Package metrics exposes Prometheus instrumentation for the generation
// pipeline. All methods are nil-safe so callers can run uninstrumented.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Unit outcome labels.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
)

// Metrics holds the pipeline instrumentation.
type Metrics struct {
	unitsTotal    *prometheus.CounterVec
	attemptsTotal prometheus.Counter
	haltsTotal    prometheus.Counter
	unitScore     prometheus.Histogram
	phase         *prometheus.GaugeVec
}

// New registers the pipeline metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		unitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "semdraft_units_total",
			Help: "Generation units settled, by outcome.",
		}, []string{"outcome"}),
		attemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "semdraft_generation_attempts_total",
			Help: "Generation attempts, including retries.",
		}),
		haltsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "semdraft_pipeline_halts_total",
			Help: "Pipeline halts that need operator attention.",
		}),
		unitScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "semdraft_unit_score",
			Help:    "Distribution of unit quality scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		phase: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "semdraft_phase",
			Help: "Current lifecycle phase per project (1 = active).",
		}, []string{"slug", "phase"}),
	}
}

// UnitSettled counts a settled unit by outcome.
func (m *Metrics) UnitSettled(outcome string) {
	if m == nil {
		return
	}
	m.unitsTotal.WithLabelValues(outcome).Inc()
}

// AttemptMade counts one generation attempt.
func (m *Metrics) AttemptMade() {
	if m == nil {
		return
	}
	m.attemptsTotal.Inc()
}

// PipelineHalted counts a pipeline halt.
func (m *Metrics) PipelineHalted() {
	if m == nil {
		return
	}
	m.haltsTotal.Inc()
}

// ObserveUnitScore records a unit's quality score.
func (m *Metrics) ObserveUnitScore(score int) {
	if m == nil {
		return
	}
	m.unitScore.Observe(float64(score))
}

// SetPhase marks the project's current phase, clearing the previous one.
func (m *Metrics) SetPhase(slug, phase string) {
	if m == nil {
		return
	}
	m.phase.DeletePartialMatch(prometheus.Labels{"slug": slug})
	m.phase.WithLabelValues(slug, phase).Set(1)
}
