// Package ratelimit limits how often a client may submit feedback.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrRateLimitExceeded is returned when the rate limit is exceeded.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed    bool          // Whether the request is allowed
	Remaining  int           // Remaining requests in the current window
	ResetAfter time.Duration // Time until the oldest request expires
	RetryAfter time.Duration // Suggested retry time (if blocked)
	Limit      int           // The configured limit
}

// Limiter defines the rate limiting interface.
type Limiter interface {
	// Allow records an attempt by identifier and reports whether it may proceed.
	Allow(ctx context.Context, identifier string) (*Result, error)

	// Reset clears the rate limit state for an identifier.
	Reset(ctx context.Context, identifier string) error

	// Close releases any resources held by the limiter.
	Close() error
}

// Config holds rate limiter configuration.
type Config struct {
	Requests int           // Maximum requests per window
	Window   time.Duration // Sliding window size
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Requests: 20,
		Window:   time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Requests <= 0 {
		c.Requests = d.Requests
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// blocked builds the result for a refused attempt.
func blocked(limit int, resetAfter time.Duration) *Result {
	return &Result{
		Allowed:    false,
		Remaining:  0,
		ResetAfter: resetAfter,
		RetryAfter: resetAfter,
		Limit:      limit,
	}
}
