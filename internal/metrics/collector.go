// Package metrics exposes the Prometheus instrumentation for the
// retrieval service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service metrics.
type Collector struct {
	RetrievalDuration *prometheus.HistogramVec
	RetrievalResults  prometheus.Histogram
	Degradations      *prometheus.CounterVec

	IngestedDocuments *prometheus.CounterVec
	IngestedChunks    prometheus.Counter
	IngestDuration    prometheus.Histogram

	AnswerDuration prometheus.Histogram
	AnswerErrors   prometheus.Counter

	IndexRebuilds prometheus.Counter
}

// NewCollector creates the collector and registers it on reg. Pass
// prometheus.DefaultRegisterer in production; tests use their own
// registry to avoid duplicate registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		RetrievalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_duration_seconds",
				Help:    "Hybrid retrieval latency in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"reranked"},
		),
		RetrievalResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "retrieval_results",
				Help:    "Number of results returned per retrieval",
				Buckets: []float64{0, 1, 2, 5, 10, 20},
			},
		),
		Degradations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_degradations_total",
				Help: "Retrievals that fell back to a degraded mode",
			},
			[]string{"kind"},
		),
		IngestedDocuments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingested_documents_total",
				Help: "Documents processed by the indexing pipeline",
			},
			[]string{"outcome"},
		),
		IngestedChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingested_chunks_total",
				Help: "Chunks written to corpora",
			},
		),
		IngestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_duration_seconds",
				Help:    "Per-document ingestion latency in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		AnswerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "answer_duration_seconds",
				Help:    "End-to-end answer latency in seconds",
				Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		AnswerErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "answer_errors_total",
				Help: "Answer requests that failed",
			},
		),
		IndexRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_rebuilds_total",
				Help: "Vector index rebuilds triggered by consistency checks",
			},
		),
	}

	reg.MustRegister(
		c.RetrievalDuration,
		c.RetrievalResults,
		c.Degradations,
		c.IngestedDocuments,
		c.IngestedChunks,
		c.IngestDuration,
		c.AnswerDuration,
		c.AnswerErrors,
		c.IndexRebuilds,
	)

	return c
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}
