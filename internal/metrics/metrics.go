// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feedtrack"

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks in-flight HTTP requests.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// CacheHitsTotal counts feedback cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of feedback cache hits",
		},
	)

	// CacheMissesTotal counts feedback cache misses.
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of feedback cache misses",
		},
	)

	// StoreQueryDuration measures storage backend latency.
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_seconds",
			Help:      "Feedback store query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "operation"},
	)

	// FeedbackSubmittedTotal counts accepted feedback entries.
	FeedbackSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_submitted_total",
			Help:      "Total number of feedback entries stored",
		},
	)

	// FeedbackRejectedTotal counts rejected submissions by reason.
	FeedbackRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_rejected_total",
			Help:      "Total number of rejected feedback submissions",
		},
		[]string{"reason"},
	)

	// ChecksTotal counts check suite results.
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Total number of check suite results by check and outcome",
		},
		[]string{"check", "result"},
	)

	// CheckDuration measures how long each check took.
	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Check suite duration per check in seconds",
			Buckets:   []float64{.0001, .001, .01, .05, .1, .25, .5, 1, 5},
		},
		[]string{"check"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request metric.
func RecordRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss.
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordStoreQuery records a storage backend call.
func RecordStoreQuery(backend, operation string, duration time.Duration) {
	StoreQueryDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordFeedbackSubmitted records a stored feedback entry.
func RecordFeedbackSubmitted() {
	FeedbackSubmittedTotal.Inc()
}

// RecordFeedbackRejected records a rejected submission.
func RecordFeedbackRejected(reason string) {
	FeedbackRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordCheck records the outcome of a single check. result is "pass", "fail" or "skip".
func RecordCheck(check, result string, duration time.Duration) {
	ChecksTotal.WithLabelValues(check, result).Inc()
	CheckDuration.WithLabelValues(check).Observe(duration.Seconds())
}
