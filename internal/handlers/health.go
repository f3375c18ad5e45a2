package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthResponse represents the response for the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse represents the response for the ready endpoint.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// DefaultCheckTimeout bounds each dependency check run by Ready.
const DefaultCheckTimeout = 2 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ready   bool
	checks  map[string]CheckFunc
	timeout time.Duration
	mu      sync.RWMutex
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		ready:   true,
		checks:  make(map[string]CheckFunc),
		timeout: DefaultCheckTimeout,
	}
}

// Health handles the /health endpoint.
// This endpoint indicates if the service is running.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	writeJSON(w, http.StatusOK, response)
}

// Ready handles the /ready endpoint.
// A failing check reports its error text in place of "ok".
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	allReady := h.ready
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]CheckFunc, len(names))
	for _, name := range names {
		checks[name] = h.checks[name]
	}
	timeout := h.timeout
	h.mu.RUnlock()

	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		err := checks[name](ctx)
		cancel()

		if err != nil {
			results[name] = "fail: " + err.Error()
			allReady = false
			continue
		}
		results[name] = "ok"
	}

	status := "ready"
	statusCode := http.StatusOK

	if !allReady {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if len(results) > 0 {
		response.Checks = results
	}

	writeJSON(w, statusCode, response)
}

// SetReady sets the ready state.
func (h *HealthHandler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the current ready state.
func (h *HealthHandler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// AddCheck adds a dependency check.
func (h *HealthHandler) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// SetCheckTimeout changes the per-check timeout.
func (h *HealthHandler) SetCheckTimeout(timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if timeout > 0 {
		h.timeout = timeout
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
