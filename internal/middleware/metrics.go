package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/feedtrack/feedtrack/internal/metrics"
)

// Metrics records request counts and latencies labelled by route pattern,
// which keeps label cardinality bounded by the route table.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			metrics.ActiveConnections.Inc()
			defer metrics.ActiveConnections.Dec()

			next.ServeHTTP(ww, r)

			metrics.RecordRequest(r.Method, routePattern(r), statusOf(ww), time.Since(start))
		})
	}
}

// statusOf returns the written status, treating an untouched response as 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	return http.StatusOK
}
