package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Admin API Prometheus metrics.
var (
	AdminRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eslayer",
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin API request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"route", "resource"},
	)

	AdminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eslayer",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Admin API requests by route, resource and status class",
		},
		[]string{"method", "route", "resource", "class"},
	)

	AdminInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eslayer",
		Subsystem: "admin",
		Name:      "requests_in_flight",
		Help:      "Admin API requests currently being served",
	})
)

// AdminMiddleware records admin API traffic. Resource names come from the
// {name} route parameter; they are bounded by the resource declarations.
func AdminMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			AdminInFlight.Inc()
			defer AdminInFlight.Dec()

			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route, res := routeLabels(r)
			AdminRequestDuration.WithLabelValues(route, res).Observe(time.Since(start).Seconds())
			AdminRequestsTotal.WithLabelValues(r.Method, route, res, statusClass(ww.Status())).Inc()
		})
	}
}

func routeLabels(r *http.Request) (route, resource string) {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched", ""
	}
	route = rctx.RoutePattern()
	if route == "" {
		route = "unmatched"
	}
	return route, rctx.URLParam("name")
}

// statusClass collapses a status code to "2xx", "4xx" and so on.
// A handler that never wrote a header answered 200.
func statusClass(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status/100) + "xx"
}
