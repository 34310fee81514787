package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "fedlearn/pkg/platform/audit"
)

// Metrics tracks audit persistence. A nil *Metrics records nothing.
type Metrics struct {
	EventsEmitted   *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	PersistDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fedlearn_audit_events_emitted_total",
			Help: "Audit events persisted, by category",
		}, []string{"category"}),
		PersistFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fedlearn_audit_persist_failures_total",
			Help: "Audit events that could not be persisted, by category",
		}, []string{"category"}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fedlearn_audit_persist_duration_seconds",
			Help:    "Time spent writing one audit event",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncEventsEmitted(category audit.EventCategory) {
	if m == nil {
		return
	}
	m.EventsEmitted.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) IncPersistFailures(category audit.EventCategory) {
	if m == nil {
		return
	}
	m.PersistFailures.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) ObservePersistDuration(seconds float64) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(seconds)
}
