// Package metrics exposes Prometheus instrumentation for the HTTP surface,
// the ingest path, and the processing worker.
//
// Call Init once at startup. When metrics are disabled every recording
// function is a no-op, so call sites never need a nil check.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	enabled  bool
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	uploadsTotal  *prometheus.CounterVec
	uploadBytes   prometheus.Counter
	uploadSeconds prometheus.Histogram

	jobsClaimed    prometheus.Counter
	jobsCompleted  prometheus.Counter
	jobsFailed     prometheus.Counter
	jobsRequeued   prometheus.Counter
	linesProcessed prometheus.Counter
	recordsWritten prometheus.Counter
	lineErrors     prometheus.Counter
	jobSeconds     prometheus.Histogram
)

// Init builds the registry and all collectors. Safe to call once; further
// calls are ignored.
func Init(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	if !enable || registry != nil {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpRequestsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileflux_http_requests_total",
			Help: "HTTP requests by route, method, and status code",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fileflux_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"route"},
	)

	uploadsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileflux_uploads_total",
			Help: "Upload attempts by outcome",
		},
		[]string{"outcome"},
	)
	uploadBytes = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fileflux_upload_bytes_total",
			Help: "Bytes accepted into the object store",
		},
	)
	uploadSeconds = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fileflux_upload_duration_seconds",
			Help:    "Wall time of a full upload stream",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 120, 600},
		},
	)

	jobsClaimed = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{Name: "fileflux_jobs_claimed_total", Help: "Jobs claimed by this process"},
	)
	jobsCompleted = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{Name: "fileflux_jobs_completed_total", Help: "Jobs finished successfully"},
	)
	jobsFailed = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{Name: "fileflux_jobs_failed_total", Help: "Jobs finished in failure"},
	)
	jobsRequeued = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{Name: "fileflux_jobs_requeued_total", Help: "Stale jobs returned to the queue"},
	)
	linesProcessed = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{Name: "fileflux_lines_processed_total", Help: "Input lines consumed by the worker"},
	)
	recordsWritten = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{Name: "fileflux_records_written_total", Help: "Parsed records inserted"},
	)
	lineErrors = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{Name: "fileflux_line_errors_total", Help: "Lines that failed to parse or validate"},
	)
	jobSeconds = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fileflux_job_duration_seconds",
			Help:    "Wall time of one processed job",
			Buckets: []float64{0.1, 1, 10, 60, 300, 1800},
		},
	)

	enabled = true
}

// IsEnabled reports whether Init has been called with metrics on.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Handler serves the metrics endpoint. Returns a 404 handler when metrics
// are disabled.
func Handler() http.Handler {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if !IsEnabled() {
		return
	}
	httpRequestsTotal.WithLabelValues(route, method, statusLabel(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveUpload records one finished upload attempt.
func ObserveUpload(outcome string, bytes int64, duration time.Duration) {
	if !IsEnabled() {
		return
	}
	uploadsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		uploadBytes.Add(float64(bytes))
	}
	uploadSeconds.Observe(duration.Seconds())
}

// ObserveJobClaimed counts a successful claim.
func ObserveJobClaimed() {
	if IsEnabled() {
		jobsClaimed.Inc()
	}
}

// ObserveJobFinished records a terminal job outcome with its counters.
func ObserveJobFinished(success bool, lines, inserted, errs int64, duration time.Duration) {
	if !IsEnabled() {
		return
	}
	if success {
		jobsCompleted.Inc()
	} else {
		jobsFailed.Inc()
	}
	linesProcessed.Add(float64(lines))
	recordsWritten.Add(float64(inserted))
	lineErrors.Add(float64(errs))
	jobSeconds.Observe(duration.Seconds())
}

// ObserveJobsRequeued counts jobs returned to the queue by a stale sweep.
func ObserveJobsRequeued(n int64) {
	if IsEnabled() && n > 0 {
		jobsRequeued.Add(float64(n))
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
