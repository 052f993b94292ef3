// Package metrics exposes Prometheus collectors for the crawler, indexer and search engine.
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
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	crawlerRobotsTotal            *prometheus.CounterVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	crawlerFrontierPending        prometheus.Gauge
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	indexBuildDurationSeconds     prometheus.Histogram
	indexDocuments                prometheus.Gauge
	indexTerms                    prometheus.Gauge
	searchQueriesTotal            *prometheus.CounterVec
	searchLatencySeconds          prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of URLs processed, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerRobotsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_robots_total",
				Help: "Robots policy lookups per site, labeled by result (loaded, unavailable).",
			},
			[]string{"site", "result"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of throttle wait durations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"scope"},
		)

		crawlerFrontierPending = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_frontier_pending",
				Help: "Number of URLs waiting in the frontier queue.",
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
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		indexBuildDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Histogram of index build durations.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		)

		indexDocuments = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Number of documents in the most recently built or loaded index.",
			},
		)

		indexTerms = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of vocabulary terms in the most recently built or loaded index.",
			},
		)

		searchQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total number of search queries, labeled by status.",
			},
			[]string{"status"},
		)

		searchLatencySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Histogram of query evaluation latencies.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
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

// ObserveCrawl records one processed URL and the bytes it produced.
func ObserveCrawl(site string, outcome string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveRobots records the result of a robots policy lookup.
func ObserveRobots(site string, result string) {
	Init()
	crawlerRobotsTotal.WithLabelValues(SanitizeSite(site), result).Inc()
}

// ObserveRateLimitDelay records the duration of a throttle wait.
func ObserveRateLimitDelay(scope string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(scope).Observe(duration.Seconds())
}

// SetFrontierPending reports the current frontier queue length.
func SetFrontierPending(n int) {
	Init()
	crawlerFrontierPending.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveIndexBuild records a completed index build.
func ObserveIndexBuild(duration time.Duration, documents, terms int) {
	Init()
	indexBuildDurationSeconds.Observe(duration.Seconds())
	SetIndexSize(documents, terms)
}

// SetIndexSize reports the shape of the active index.
func SetIndexSize(documents, terms int) {
	Init()
	indexDocuments.Set(float64(documents))
	indexTerms.Set(float64(terms))
}

// ObserveSearch records one query evaluation.
func ObserveSearch(status string, duration time.Duration) {
	Init()
	searchQueriesTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		searchLatencySeconds.Observe(duration.Seconds())
	}
}
