package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/feedtrack/feedtrack/pkg/logger"
)

// RequestLogger logs one line per request. Server errors are logged at error
// level, everything else at info.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			keyvals := []interface{}{
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"route", routePattern(r),
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if status >= http.StatusInternalServerError {
				log.Error("request failed", keyvals...)
				return
			}
			log.Info("request completed", keyvals...)
		})
	}
}
