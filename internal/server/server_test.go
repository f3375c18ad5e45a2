package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedtrack/feedtrack/internal/config"
	"github.com/feedtrack/feedtrack/internal/handlers"
	"github.com/feedtrack/feedtrack/internal/ratelimit"
	"github.com/feedtrack/feedtrack/internal/repository"
	"github.com/feedtrack/feedtrack/internal/services"
	"github.com/feedtrack/feedtrack/pkg/logger"
)

const submitBody = `{"student_id":12345,"course":"CS101","feedback":"Great course!"}`

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:      "test",
			LogLevel: "error",
		},
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0, // Let the OS assign a port
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

func testService() services.FeedbackService {
	return services.NewFeedbackService(repository.NewMemoryFeedbackRepository())
}

func serve(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), log, testService())

	assert.NotNil(t, srv)
	assert.NotNil(t, srv.HealthHandler())
	assert.NotNil(t, srv.Handler())
	assert.Empty(t, srv.Addr())
}

func TestServer_StartAndShutdown(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), log, testService())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)
	assert.True(t, srv.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))
	assert.False(t, srv.IsRunning())
	assert.NoError(t, <-errCh)
}

func TestServer_HealthEndpoint(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), log, testService())

	go func() { _ = srv.Start() }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	time.Sleep(100 * time.Millisecond)

	addr := srv.Addr()
	require.NotEmpty(t, addr)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+addr+"/health", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var health handlers.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
}

func TestServer_ReadyEndpoint(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), log, testService())
	srv.HealthHandler().AddCheck("store", repository.NewMemoryFeedbackRepository().HealthCheck)

	rec := serve(t, srv, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var ready handlers.ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ready))
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["store"])
}

func TestServer_ReadyEndpoint_NotReady(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), log, testService())
	srv.HealthHandler().SetReady(false)

	rec := serve(t, srv, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_ShutdownMarksNotReady(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), log, testService())

	go func() { _ = srv.Start() }()
	time.Sleep(100 * time.Millisecond)
	require.True(t, srv.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))
	assert.False(t, srv.HealthHandler().IsReady())
}

func TestServer_FeedbackRoundTrip(t *testing.T) {
	srv := New(testConfig(), logger.Nop(), testService())

	rec := serve(t, srv, http.MethodPost, "/api/v1/feedback", submitBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created handlers.FeedbackResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)

	rec = serve(t, srv, http.MethodGet, "/api/v1/students/12345/feedback", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var latest handlers.FeedbackResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&latest))
	assert.Equal(t, created.ID, latest.ID)
	assert.Equal(t, "Great course!", latest.Feedback)

	rec = serve(t, srv, http.MethodDelete, "/api/v1/feedback/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, srv, http.MethodGet, "/api/v1/students/12345/feedback", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MaliciousFeedbackRejected(t *testing.T) {
	srv := New(testConfig(), logger.Nop(), testService())

	body := `{"student_id":12345,"course":"CS101","feedback":"DROP TABLE feedback; --"}`
	rec := serve(t, srv, http.MethodPost, "/api/v1/feedback", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "MALICIOUS_INPUT")
}

func TestServer_NoService(t *testing.T) {
	srv := New(testConfig(), logger.Nop(), nil)

	rec := serve(t, srv, http.MethodPost, "/api/v1/feedback", submitBody)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RateLimitOnSubmitOnly(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Requests: 1, Window: time.Minute})
	srv := New(testConfig(), logger.Nop(), testService(), WithRateLimiter(limiter))
	defer func() { _ = srv.Shutdown(context.Background()) }()

	rec := serve(t, srv, http.MethodPost, "/api/v1/feedback", submitBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = serve(t, srv, http.MethodPost, "/api/v1/feedback", submitBody)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are not limited
	for i := 0; i < 3; i++ {
		rec = serve(t, srv, http.MethodGet, "/api/v1/students/12345/feedback", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestServer_DocsAndMetrics(t *testing.T) {
	srv := New(testConfig(), logger.Nop(), testService())

	rec := serve(t, srv, http.MethodGet, "/docs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feedtrack API Documentation")

	rec = serve(t, srv, http.MethodGet, "/docs/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	serve(t, srv, http.MethodGet, "/health", "")
	rec = serve(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feedtrack_http_requests_total")
}

func TestServer_CORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowedOrigins = []string{"https://courses.example.edu"}
	srv := New(cfg, logger.Nop(), testService())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/feedback", nil)
	req.Header.Set("Origin", "https://courses.example.edu")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://courses.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, allowedOrigins(nil))
	assert.Equal(t, []string{"https://a.example"}, allowedOrigins([]string{"https://a.example"}))
}
