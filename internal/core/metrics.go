package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records pipeline activity. A nil *Metrics records nothing.
type Metrics struct {
	rowsUpserted   *prometheus.CounterVec
	upsertFailures *prometheus.CounterVec
	upsertRetries  *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	upsertLatency  *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rowsUpserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testset",
			Name:      "rows_upserted_total",
			Help:      "Rows committed to the store.",
		}, []string{"kind"}),
		upsertFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testset",
			Name:      "upsert_failures_total",
			Help:      "Rows that failed after retries and aborted a submission.",
		}, []string{"kind"}),
		upsertRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testset",
			Name:      "upsert_retries_total",
			Help:      "Retries scheduled after transient store errors.",
		}, []string{"kind"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testset",
			Name:      "submissions_total",
			Help:      "Submissions processed, by terminal status.",
		}, []string{"status"}),
		upsertLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "testset",
			Name:      "upsert_duration_seconds",
			Help:      "Latency of a single row upsert including retries.",
			Buckets: []float64{
				0.001, 0.005, 0.01, 0.05,
				0.1, 0.5, 1, 5, 15, 60,
			},
		}, []string{"kind"}),
	}
}

func (m *Metrics) observeUpsert(kind Kind, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.upsertLatency.WithLabelValues(kind.String()).Observe(d.Seconds())
	if err != nil {
		m.upsertFailures.WithLabelValues(kind.String()).Inc()
		return
	}
	m.rowsUpserted.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeRetry(kind Kind) {
	if m == nil {
		return
	}
	m.upsertRetries.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeSubmission(status Status) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(status)).Inc()
}
