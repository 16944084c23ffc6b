package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names used as the stage label.
const (
	StageEmbed    = "embed"
	StageSearch   = "search"
	StageGenerate = "generate"
	StageIngest   = "ingest"
)

// Metrics holds Prometheus metrics for the RAG pipeline.
// A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - rag_stage_duration_seconds{stage} - latency of embed, search, generate and ingest
//   - rag_requests_total{operation,outcome} - query, ask and ingest calls
//   - rag_lexical_fallback_total - searches answered by word overlap
//   - rag_indexed_chunks - chunks in the current index
type Metrics struct {
	StageDuration   *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	LexicalFallback prometheus.Counter
	IndexedChunks   prometheus.Gauge
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rag_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"stage"},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_requests_total",
				Help: "Total number of pipeline requests by operation and outcome",
			},
			[]string{"operation", "outcome"}, // outcome: "ok" or "error"
		),
		LexicalFallback: f.NewCounter(prometheus.CounterOpts{
			Name: "rag_lexical_fallback_total",
			Help: "Searches answered by word overlap because the query vector matched nothing",
		}),
		IndexedChunks: f.NewGauge(prometheus.GaugeOpts{
			Name: "rag_indexed_chunks",
			Help: "Number of chunks in the current index",
		}),
	}
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Request counts one call of operation.
func (m *Metrics) Request(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// Fallback counts one lexical fallback search.
func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.LexicalFallback.Inc()
}

// SetIndexed sets the indexed chunk gauge.
func (m *Metrics) SetIndexed(n int) {
	if m == nil {
		return
	}
	m.IndexedChunks.Set(float64(n))
}
