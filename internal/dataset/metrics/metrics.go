package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for dataset storage.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Uploads            *prometheus.CounterVec
	UploadBytes        prometheus.Histogram
	LegacyPlainReads   prometheus.Counter
	DecryptionFailures prometheus.Counter
}

// New creates a new Metrics instance with all dataset metrics registered.
func New() *Metrics {
	return &Metrics{
		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fedlearn_dataset_uploads_total",
			Help: "Dataset uploads by outcome",
		}, []string{"outcome"}),
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fedlearn_dataset_upload_bytes",
			Help:    "Plaintext size of accepted uploads",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		LegacyPlainReads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fedlearn_dataset_legacy_plain_reads_total",
			Help: "Reads of datasets stored before encryption was introduced",
		}),
		DecryptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fedlearn_dataset_decryption_failures_total",
			Help: "Encrypted payloads that failed authentication or could not be read",
		}),
	}
}

func (m *Metrics) IncrementUpload(outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveUploadBytes(n int) {
	if m == nil {
		return
	}
	m.UploadBytes.Observe(float64(n))
}

func (m *Metrics) IncrementLegacyPlainRead() {
	if m == nil {
		return
	}
	m.LegacyPlainReads.Inc()
}

func (m *Metrics) IncrementDecryptionFailure() {
	if m == nil {
		return
	}
	m.DecryptionFailures.Inc()
}
