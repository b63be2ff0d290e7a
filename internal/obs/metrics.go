package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_http_in_flight_requests",
		Help: "In-flight console HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Total number of console HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_http_request_duration_seconds",
			Help:    "Console HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_backend_requests_total",
			Help: "Calls issued to the identity backend.",
		},
		[]string{"method", "status"},
	)

	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_backend_request_duration_seconds",
			Help:    "Identity backend call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_token_refresh_total",
			Help: "Token refresh attempts by outcome (ok, error, shared).",
		},
		[]string{"result"},
	)

	staleResponsesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_table_stale_responses_total",
		Help: "List responses discarded because a newer fetch was issued.",
	})
)

// Init registers the console metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		backendRequestsTotal,
		backendRequestDuration,
		tokenRefreshTotal,
		staleResponsesTotal,
	)
}

// Handler serves the Prometheus exposition.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument measures RPS, latency and in-flight requests of next.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// ObserveBackendCall records one identity backend call. status is 0 when the
// transport failed before a response arrived.
func ObserveBackendCall(method string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	backendRequestsTotal.WithLabelValues(method, label).Inc()
	backendRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveRefresh counts a token refresh outcome.
func ObserveRefresh(result string) {
	tokenRefreshTotal.WithLabelValues(result).Inc()
}

// ObserveStaleResponse counts a discarded out-of-order list response.
func ObserveStaleResponse() {
	staleResponsesTotal.Inc()
}

// CanonicalPath collapses numeric identifiers so per-row pages share a
// label, e.g. /users/42/metadata becomes /users/:id/metadata.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
