// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// questionsTotal counts completed /api/chat/question requests, partitioned
	// by the intent that answered them and the outcome: "ok" or "error".
	questionsTotal *prometheus.CounterVec

	// questionDurationSeconds records the wall-clock duration of each question
	// from receipt to answer, partitioned by intent.
	questionDurationSeconds *prometheus.HistogramVec

	// uploadsTotal counts document uploads, partitioned by outcome:
	// "accepted", "rejected", or "error".
	uploadsTotal *prometheus.CounterVec

	// processedTotal counts background document processing runs, partitioned
	// by outcome: "processed" or "failed".
	processedTotal *prometheus.CounterVec

	// documentsProcessing is the number of documents currently being
	// chunked and embedded.
	documentsProcessing prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, path pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		questionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askdoc",
			Subsystem: "chat",
			Name:      "questions_total",
			Help:      "Total number of questions answered, partitioned by intent and outcome.",
		}, []string{"intent", "outcome"}),

		questionDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "askdoc",
			Subsystem: "chat",
			Name:      "question_duration_seconds",
			Help:      "Wall-clock duration of question answering from receipt to answer.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"intent"}),

		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askdoc",
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total number of document uploads, partitioned by outcome.",
		}, []string{"outcome"}),

		processedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askdoc",
			Subsystem: "ingest",
			Name:      "processed_total",
			Help:      "Total number of background processing runs, partitioned by outcome.",
		}, []string{"outcome"}),

		documentsProcessing: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "askdoc",
			Subsystem: "ingest",
			Name:      "documents_processing",
			Help:      "Number of documents currently being chunked and embedded.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askdoc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "askdoc",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
