package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements a sliding-window limiter for a single process.
// Expired identifiers are swept lazily, at most once per window.
type MemoryLimiter struct {
	config Config
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates a new in-memory rate limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		config: cfg.withDefaults(),
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow checks if a request from the given identifier is allowed.
func (m *MemoryLimiter) Allow(ctx context.Context, identifier string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now()
	windowStart := now.Add(-m.config.Window)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeSweep(now)

	recent := prune(m.hits[identifier], windowStart)

	var resetAfter time.Duration
	if len(recent) > 0 {
		resetAfter = max(recent[0].Add(m.config.Window).Sub(now), 0)
	}

	if len(recent) >= m.config.Requests {
		m.hits[identifier] = recent
		return blocked(m.config.Requests, resetAfter), nil
	}

	m.hits[identifier] = append(recent, now)
	if len(recent) == 0 {
		resetAfter = m.config.Window
	}

	return &Result{
		Allowed:    true,
		Remaining:  m.config.Requests - len(recent) - 1,
		ResetAfter: resetAfter,
		Limit:      m.config.Requests,
	}, nil
}

// Reset clears the rate limit state for an identifier.
func (m *MemoryLimiter) Reset(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hits, identifier)
	return nil
}

// Close is a no-op; the limiter owns no background work.
func (m *MemoryLimiter) Close() error {
	return nil
}

// Len returns the number of identifiers currently tracked.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

// maybeSweep drops identifiers with no hits inside the window. Callers hold mu.
func (m *MemoryLimiter) maybeSweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.config.Window {
		return
	}
	m.lastSweep = now

	windowStart := now.Add(-m.config.Window)
	for id, ts := range m.hits {
		if recent := prune(ts, windowStart); len(recent) > 0 {
			m.hits[id] = recent
		} else {
			delete(m.hits, id)
		}
	}
}

// prune returns the suffix of ts newer than windowStart. ts is in ascending order.
func prune(ts []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(windowStart) {
		i++
	}
	return ts[i:]
}
