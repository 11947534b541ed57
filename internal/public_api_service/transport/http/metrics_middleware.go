package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status_code"},
	)

	// Report routes block up to the poll deadline, so the buckets reach past the default 10s.
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "connector",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"method", "path"},
	)

	reportRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector",
			Name:      "report_http_requests_total",
			Help:      "Requests to report routes by report variant.",
		},
		[]string{"method", "variant", "status_code"},
	)
)

// variantLabel returns the {variant} parameter of a report route. The variant name comes
// from the caller, so 404 responses (unknown variants, unknown sellers) share one label.
func variantLabel(rctx *chi.Context, statusCode int) (string, bool) {
	if rctx == nil {
		return "", false
	}
	variant := rctx.URLParam("variant")
	if variant == "" {
		return "", false
	}
	if statusCode == http.StatusNotFound {
		return "unknown", true
	}
	return variant, true
}

// PrometheusMetricsMiddleware is a Chi middleware that records Prometheus metrics for HTTP requests.
// The route pattern is used as the path label so ids in URLs do not explode cardinality.
// Report routes are also counted per variant.
func PrometheusMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rctx := chi.RouteContext(r.Context())
		path := "unknown"
		if rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		statusCode := ww.Status()
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		status := strconv.Itoa(statusCode)

		httpRequestDurationSeconds.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		if variant, ok := variantLabel(rctx, statusCode); ok {
			reportRequestsTotal.WithLabelValues(r.Method, variant, status).Inc()
		}
	})
}
