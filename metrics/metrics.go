// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docqa"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	IngestRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_requests_total",
		Help:      "Document ingestion batches by outcome.",
	}, []string{"status"})

	FilesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_ingested_total",
		Help:      "Files loaded into the index.",
	})

	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_indexed_total",
		Help:      "Chunks submitted to the vector index.",
	})

	Questions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_total",
		Help:      "Questions answered by outcome.",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Latency of pipeline stages (load, split, index, contextualize, retrieve, answer).",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})
)

// ObserveStage records the time elapsed since start for a pipeline stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Status maps an error to a status label value.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
