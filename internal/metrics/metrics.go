// Package metrics defines the Prometheus metrics exposed by the media
// variants service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Variant generation metrics
var (
	VariantsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_variants_generated_total",
			Help: "Total number of variants generated",
		},
		[]string{"preset", "format"},
	)

	VariantsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_variants_failed_total",
			Help: "Total number of variant generations that failed",
		},
		[]string{"preset", "format"},
	)

	VariantsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_variants_deleted_total",
			Help: "Total number of variant files deleted by the cleaner",
		},
	)

	RegenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_variants_regeneration_duration_seconds",
			Help:    "Duration of full per-media regenerations in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	RegenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_variants_regenerations_total",
			Help: "Total number of regeneration runs",
		},
		[]string{"status"}, // "complete", "partial", "failed"
	)
)

// Orphan reconciliation metrics
var (
	OrphansDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_variants_orphans_deleted_total",
			Help: "Total number of orphaned variant files deleted",
		},
	)

	OrphanBytesFreedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_variants_orphan_bytes_freed_total",
			Help: "Total bytes freed by orphan deletion",
		},
	)
)

// Database metrics
var (
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_variants_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)
)

// Upload metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_variants_uploads_total",
			Help: "Total number of media uploads",
		},
		[]string{"status"}, // "ok", "duplicate", "error"
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_variants_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_variants_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_variants_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Progress publishing metrics
var (
	ProgressPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_variants_progress_publish_total",
			Help: "Total number of progress event publishes",
		},
		[]string{"status"}, // "ok", "error"
	)
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
