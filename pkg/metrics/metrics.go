// Package metrics exposes the process's Prometheus collectors. Everything is
// registered on the default registry under the pgbase_ prefix.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgeflare/pgbase/pkg/httputil/middleware"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgbase_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "pattern", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pgbase_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "pattern"})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgbase_queries_total",
		Help: "Compiled statements executed, by operation and outcome.",
	}, []string{"operation", "outcome"})

	RLSDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgbase_rls_decisions_total",
		Help: "Row-security decisions by role and whether a predicate was injected.",
	}, []string{"role", "enforced"})

	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgbase_auth_events_total",
		Help: "Auth operations by event and outcome.",
	}, []string{"event", "outcome"})

	SchemaReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgbase_schema_reloads_total",
		Help: "Schema cache reloads triggered by NOTIFY or startup.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTP is router middleware recording request counts and latency. The route
// pattern (not the raw path) is the label, so table names with high
// cardinality don't blow up the series count.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := middleware.NewResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)

		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		RequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.StatusCode)).Inc()
		RequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
