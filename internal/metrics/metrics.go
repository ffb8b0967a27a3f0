// Package metrics exposes pipeline counters on a prometheus registry.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

const namespace = "invoice_ocr"

type Metrics struct {
	documents  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	riskFlags  *prometheus.CounterVec
	duration   prometheus.Histogram
	riskScore  prometheus.Histogram
	queueDepth prometheus.Gauge
	enqueued   prometheus.Counter
}

// New registers the collectors on reg. Registering twice on the same
// registry panics, like prometheus.MustRegister.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by resolved schema.",
		}, []string{"schema"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Pipeline runs that ended in an error, by error code.",
		}, []string{"code"}),
		riskFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_flags_total",
			Help:      "Risk flags raised on processed documents.",
		}, []string{"flag"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_seconds",
			Help:      "End-to-end processing time per document.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		riskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Risk score per processed document.",
			Buckets:   []float64{0, 0.15, 0.3, 0.5, 0.7, 1},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the processor queue.",
		}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Jobs accepted by the processor queue.",
		}),
	}
	reg.MustRegister(m.documents, m.failures, m.riskFlags, m.duration, m.riskScore, m.queueDepth, m.enqueued)
	return m
}

// RecordDocument counts a finished document with its schema and risk outcome.
func (m *Metrics) RecordDocument(schema constants.SchemaName, riskScore float64, flags []constants.RiskSignal, d time.Duration) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(string(schema)).Inc()
	m.riskScore.Observe(riskScore)
	for _, f := range flags {
		m.riskFlags.WithLabelValues(string(f)).Inc()
	}
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) RecordFailure(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "UNKNOWN"
	}
	m.failures.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordEnqueued() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Handler serves the gatherer in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
