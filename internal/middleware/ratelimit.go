package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/feedtrack/feedtrack/internal/ratelimit"
	"github.com/feedtrack/feedtrack/pkg/logger"
)

// RateLimitResponse is the JSON response for rate limited requests.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit refuses requests from a client that exceeded the limiter's budget.
// Clients are identified by the address ClientIP stored. Limiter errors fail open.
func RateLimit(limiter ratelimit.Limiter, log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Allow(r.Context(), "ip:"+identify(r))
			if err != nil {
				log.Warn("rate limiter unavailable", "error", err.Error(), "request_id", GetRequestID(r.Context()))
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimitResponse(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func identify(r *http.Request) string {
	if ip := GetClientIP(r.Context()); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retrySeconds(d time.Duration) int {
	return max(int(d.Seconds()), 1)
}

func setRateLimitHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

	if result.ResetAfter > 0 {
		resetAt := time.Now().Add(result.ResetAfter).Unix()
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
	}
	if !result.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(result.RetryAfter)))
	}
}

func writeRateLimitResponse(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(RateLimitResponse{
		Error:      ratelimit.ErrRateLimitExceeded.Error(),
		Code:       "RATE_LIMIT_EXCEEDED",
		RetryAfter: retrySeconds(result.RetryAfter),
	})
}
