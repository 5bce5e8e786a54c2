// Package metrics exposes Prometheus collectors for the event pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchFailuresTotal         *prometheus.CounterVec
	extractionsTotal           *prometheus.CounterVec
	filterRejectionsTotal      *prometheus.CounterVec
	eventsSavedTotal           *prometheus.CounterVec
	discoveredURLsTotal        *prometheus.CounterVec
	runDurationSeconds         *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeEnrichmentWorkers    prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventscout_fetches_total",
				Help: "Total page fetches, labeled by backend and site.",
			},
			[]string{"backend", "site"},
		)

		fetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventscout_fetch_failures_total",
				Help: "Total fetch failures, labeled by backend and failure kind.",
			},
			[]string{"backend", "kind"},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventscout_extractions_total",
				Help: "Total extractions, labeled by method used.",
			},
			[]string{"method"},
		)

		filterRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventscout_filter_rejections_total",
				Help: "Total candidates rejected, labeled by filter stage.",
			},
			[]string{"stage"},
		)

		eventsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventscout_events_saved_total",
				Help: "Total event records persisted, labeled by event type and outcome.",
			},
			[]string{"event_type", "outcome"},
		)

		discoveredURLsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventscout_discovered_urls_total",
				Help: "Total candidate URLs discovered, labeled by source.",
			},
			[]string{"source"},
		)

		runDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventscout_run_duration_seconds",
				Help:    "Histogram of full pipeline run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"event_type"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeEnrichmentWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventscout_active_enrichment_workers",
				Help: "Number of workers currently enriching a candidate URL.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch increments the fetch counter for a successful fetch.
func ObserveFetch(backend, site string) {
	fetchesTotal.WithLabelValues(backend, SanitizeSite(site)).Inc()
}

// ObserveFetchFailure increments the failure counter for one backend attempt.
func ObserveFetchFailure(backend, kind string) {
	fetchFailuresTotal.WithLabelValues(backend, kind).Inc()
}

// ObserveExtraction records which extraction method produced a candidate.
func ObserveExtraction(method string) {
	extractionsTotal.WithLabelValues(method).Inc()
}

// ObserveFilterRejection records a candidate rejected at the given stage.
func ObserveFilterRejection(stage string) {
	filterRejectionsTotal.WithLabelValues(stage).Inc()
}

// ObserveEventSaved records a persisted event record.
func ObserveEventSaved(eventType, outcome string) {
	eventsSavedTotal.WithLabelValues(eventType, outcome).Inc()
}

// ObserveDiscovered adds discovered candidate URLs for a source.
func ObserveDiscovered(source string, count int) {
	if count > 0 {
		discoveredURLsTotal.WithLabelValues(source).Add(float64(count))
	}
}

// ObserveRunDuration records how long a full run took.
func ObserveRunDuration(eventType string, duration time.Duration) {
	runDurationSeconds.WithLabelValues(eventType).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeEnrichmentWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeEnrichmentWorkers.Dec()
}
