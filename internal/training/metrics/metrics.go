package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the training module.
// Tracks run outcomes, per-model fit durations and isolated model failures.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsFinished      *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	ModelFitDuration  *prometheus.HistogramVec
	ModelFailures     *prometheus.CounterVec
	DispatchConflicts prometheus.Counter
	ExplainFailures   prometheus.Counter
}

// New creates a new Metrics instance with all training module metrics registered.
func New() *Metrics {
	return &Metrics{
		RunsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fedlearn_training_runs_finished_total",
			Help: "Training runs that reached a terminal state, by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fedlearn_training_run_duration_seconds",
			Help:    "Wall time from RUNNING to a terminal state",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		ModelFitDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fedlearn_model_fit_duration_seconds",
			Help:    "Duration of fitting and evaluating one model across all partitions",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"family"}),
		ModelFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fedlearn_model_failures_total",
			Help: "Models that failed inside an otherwise running training run",
		}, []string{"family"}),
		DispatchConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fedlearn_dispatch_conflicts_total",
			Help: "Dispatch attempts rejected because the run was already being driven",
		}),
		ExplainFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fedlearn_explanation_failures_total",
			Help: "Explanation collaborator calls that failed",
		}),
	}
}

// IncrementRunFinished records a run reaching status.
func (m *Metrics) IncrementRunFinished(status string) {
	if m == nil {
		return
	}
	m.RunsFinished.WithLabelValues(status).Inc()
}

// ObserveRun records the duration of a run.
// Call with the time the run entered RUNNING.
func (m *Metrics) ObserveRun(start time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveModelFit(family string, d time.Duration) {
	if m == nil {
		return
	}
	m.ModelFitDuration.WithLabelValues(family).Observe(d.Seconds())
}

func (m *Metrics) IncrementModelFailure(family string) {
	if m == nil {
		return
	}
	m.ModelFailures.WithLabelValues(family).Inc()
}

func (m *Metrics) IncrementDispatchConflict() {
	if m == nil {
		return
	}
	m.DispatchConflicts.Inc()
}

func (m *Metrics) IncrementExplainFailure() {
	if m == nil {
		return
	}
	m.ExplainFailures.Inc()
}
