// Package middleware contains HTTP middleware components.
package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware wraps an http.Handler with additional behavior. It matches the
// signature chi.Router.Use expects.
type Middleware = func(http.Handler) http.Handler

// contextKey is the type for context keys used by middleware.
type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
	// ClientIPKey is the context key for client IP.
	ClientIPKey contextKey = "client_ip"
)

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetClientIP retrieves the client IP from context.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}

// routePattern returns the matched chi route, or "/other" when nothing matched.
// It is only complete once the router has served the request.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "/other"
}
