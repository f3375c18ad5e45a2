package middleware

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// HeaderXRequestID is the header name for request ID.
	HeaderXRequestID = "X-Request-ID"
	// HeaderXForwardedFor is the header name for forwarded client IP.
	HeaderXForwardedFor = "X-Forwarded-For"
	// HeaderXRealIP is the header name for real client IP.
	HeaderXRealIP = "X-Real-IP"
)

// requestIDMaxLength is the maximum length for a valid request ID.
const requestIDMaxLength = 128

var validRequestIDRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// RequestID tags each request with an ID, reusing a well-formed incoming
// X-Request-ID header and generating a UUID v4 otherwise.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderXRequestID)
			if !isValidRequestID(requestID) {
				requestID = uuid.NewString()
			}

			w.Header().Set(HeaderXRequestID, requestID)
			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isValidRequestID(id string) bool {
	return id != "" && len(id) <= requestIDMaxLength && validRequestIDRegex.MatchString(id)
}

// ClientIP stores the client address in the request context. Forwarding
// headers are honoured only when trustProxy is set.
func ClientIP(trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPKey, clientIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get(HeaderXForwardedFor); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if xri := strings.TrimSpace(r.Header.Get(HeaderXRealIP)); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
