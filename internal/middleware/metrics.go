package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP series are keyed by the chi route pattern, so every
// /api/todoitems/{id} request lands in one series regardless of id.
var (
	requestLabels = []string{"method", "route", "status"}

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "todo",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route and status.",
	}, requestLabels)

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "todo",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, requestLabels)

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "todo",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})
)

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		begin := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		route, status := routePattern(r), strconv.Itoa(sw.code())
		requestsTotal.WithLabelValues(r.Method, route, status).Inc()
		requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(begin).Seconds())
	})
}

// MetricsHandler exposes the default registry, which also carries the
// repository series.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
