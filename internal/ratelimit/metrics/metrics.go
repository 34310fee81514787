package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsRejected *prometheus.CounterVec
	StoreErrors      prometheus.Counter
	FallbackActive   prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		RequestsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fedlearn_ratelimit_rejected_total",
			Help: "Requests rejected by the per-user rate limiter",
		}, []string{"class"}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fedlearn_ratelimit_store_errors_total",
			Help: "Errors returned by the primary rate limit store",
		}),
		FallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fedlearn_ratelimit_fallback_active",
			Help: "1 while rate limiting runs on the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementRejected(class string) {
	if m == nil {
		return
	}
	m.RequestsRejected.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) SetFallbackActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}
