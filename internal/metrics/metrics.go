// Package metrics exposes Prometheus collectors for the unfurl service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	previewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unfurl_previews_total",
			Help: "Total number of preview requests, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	// Target hosts come from callers, so fetch and limiter counters carry no
	// per-host label.
	fetchBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unfurl_fetch_bytes_total",
			Help: "Total number of undecoded bytes fetched.",
		},
	)

	fetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "unfurl_fetch_duration_seconds",
			Help:    "Histogram of end-to-end preview latencies.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 12},
		},
	)

	decodeDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unfurl_decode_degraded_total",
			Help: "Total number of bodies whose decompression failed, labeled by encoding.",
		},
		[]string{"encoding"},
	)

	extractionEmptyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unfurl_extraction_empty_total",
			Help: "Total number of documents without any preview metadata.",
		},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unfurl_rate_limited_total",
			Help: "Total number of preview requests rejected by the per-host limiter.",
		},
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
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePreview records one pipeline run.
func ObservePreview(outcome string, duration time.Duration) {
	previewsTotal.WithLabelValues(outcome).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveFetchBytes adds the undecoded body size of one fetch.
func ObserveFetchBytes(n int) {
	if n <= 0 {
		return
	}
	fetchBytesTotal.Add(float64(n))
}

// ObserveDecodeDegraded counts a decompression failure.
func ObserveDecodeDegraded(encoding string) {
	decodeDegradedTotal.WithLabelValues(strings.ToLower(encoding)).Inc()
}

// ObserveExtractionEmpty counts a document without metadata.
func ObserveExtractionEmpty() {
	extractionEmptyTotal.Inc()
}

// ObserveRateLimited counts a request rejected by the per-host limiter.
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
