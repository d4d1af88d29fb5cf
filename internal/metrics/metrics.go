// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                *prometheus.CounterVec
	pagesCrawledTotal        *prometheus.CounterVec
	artifactsWrittenTotal    *prometheus.CounterVec
	transportErrorsTotal     prometheus.Counter
	tier1BusyWorkers         prometheus.Gauge
	pageFetchDurationSeconds prometheus.Histogram
	httpRequestDuration      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_jobs_total",
				Help: "Jobs processed, labeled by tier and outcome.",
			},
			[]string{"tier", "outcome"},
		)
		pagesCrawledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_pages_crawled_total",
				Help: "Pages fetched by the fallback crawler, labeled by classification.",
			},
			[]string{"class"},
		)
		artifactsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_artifacts_written_total",
				Help: "Artifacts persisted, labeled by artifact type.",
			},
			[]string{"type"},
		)
		transportErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_queue_transport_errors_total",
				Help: "Queue transport errors observed by polling workers.",
			},
		)
		tier1BusyWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_tier1_busy_workers",
				Help: "Tier-1 workers currently processing a job.",
			},
		)
		pageFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_page_fetch_duration_seconds",
				Help:    "Duration of individual page renders.",
				Buckets: prometheus.DefBuckets,
			},
		)
		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_http_request_duration_seconds",
				Help:    "Duration of HTTP requests, labeled by method, route, and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		)
	})
}

// JobProcessed records a finished job for a tier ("tier1", "tier2") and
// outcome ("completed", "failed", "failed_over").
func JobProcessed(tier, outcome string) {
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(tier, outcome).Inc()
	}
}

// PageCrawled records one fetched page by classification.
func PageCrawled(class string) {
	if pagesCrawledTotal != nil {
		pagesCrawledTotal.WithLabelValues(class).Inc()
	}
}

// ArtifactWritten records one persisted artifact by type.
func ArtifactWritten(artifactType string) {
	if artifactsWrittenTotal != nil {
		artifactsWrittenTotal.WithLabelValues(artifactType).Inc()
	}
}

// TransportError counts a queue transport failure.
func TransportError() {
	if transportErrorsTotal != nil {
		transportErrorsTotal.Inc()
	}
}

// Tier1WorkerBusy tracks the busy-worker gauge.
func Tier1WorkerBusy(delta float64) {
	if tier1BusyWorkers != nil {
		tier1BusyWorkers.Add(delta)
	}
}

// ObserveFetchDuration records one page render duration.
func ObserveFetchDuration(d time.Duration) {
	if pageFetchDurationSeconds != nil {
		pageFetchDurationSeconds.Observe(d.Seconds())
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if httpRequestDuration != nil {
		httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
