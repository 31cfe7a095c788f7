package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/senselogic/internal/ir"
)

// Metrics holds the scheduler's prometheus collectors. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	promotions  *prometheus.CounterVec
	queued      *prometheus.GaugeVec
	parked      *prometheus.GaugeVec
}

// NewMetrics registers the scheduler collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "senselogic_evaluations_total",
			Help: "Evaluations by queue and outcome",
		}, []string{"queue", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "senselogic_evaluation_duration_seconds",
			Help:    "Wall time spent evaluating one entry",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"queue"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "senselogic_transitions_total",
			Help: "Reported expression state changes by new state",
		}, []string{"state"}),
		promotions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "senselogic_promotions_total",
			Help: "Data-changed signals that matched an active entry",
		}, []string{"queue"}),
		queued: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "senselogic_queued",
			Help: "Active entries waiting on a deadline",
		}, []string{"queue"}),
		parked: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "senselogic_parked",
			Help: "Active entries waiting on a data-changed signal",
		}, []string{"queue"}),
	}
}

func (m *Metrics) observe(queue, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(queue, outcome).Inc()
	m.duration.WithLabelValues(queue).Observe(elapsed.Seconds())
}

func (m *Metrics) transition(state ir.TriState) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state.String()).Inc()
}

func (m *Metrics) promoted(queue string) {
	if m == nil {
		return
	}
	m.promotions.WithLabelValues(queue).Inc()
}

func (m *Metrics) depth(queue string, queued, parked int) {
	if m == nil {
		return
	}
	m.queued.WithLabelValues(queue).Set(float64(queued))
	m.parked.WithLabelValues(queue).Set(float64(parked))
}
