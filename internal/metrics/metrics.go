package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragdesk_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Ingestion
var (
	FilesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragdesk_files_ingested_total",
			Help: "PDF files processed, by outcome.",
		},
		[]string{"status"},
	)

	ChunksIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragdesk_chunks_ingested_total",
			Help: "Chunks embedded and stored.",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragdesk_ingest_file_duration_seconds",
			Help:    "Time to ingest one PDF file.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)
)

// Retrieval and generation
var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragdesk_queries_total",
			Help: "Retrieval-augmented queries by backend and outcome.",
		},
		[]string{"backend", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragdesk_generation_duration_seconds",
			Help:    "Latency of generation backend calls.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"backend"},
	)

	RetrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragdesk_retrieval_duration_seconds",
			Help:    "Latency of embedding the question and querying the collection.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		},
	)
)

func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
