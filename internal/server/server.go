// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/feedtrack/feedtrack/internal/config"
	"github.com/feedtrack/feedtrack/internal/handlers"
	"github.com/feedtrack/feedtrack/internal/metrics"
	"github.com/feedtrack/feedtrack/internal/middleware"
	"github.com/feedtrack/feedtrack/internal/ratelimit"
	"github.com/feedtrack/feedtrack/internal/services"
	"github.com/feedtrack/feedtrack/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithRateLimiter limits feedback submissions with the given limiter.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) {
		s.rateLimiter = l
	}
}

// Server represents the HTTP server.
type Server struct {
	cfg             *config.Config
	log             *logger.Logger
	httpServer      *http.Server
	router          chi.Router
	healthHandler   *handlers.HealthHandler
	docsHandler     *handlers.DocsHandler
	feedbackHandler *handlers.FeedbackHandler
	rateLimiter     ratelimit.Limiter
	listener        net.Listener
	running         bool
	mu              sync.RWMutex
}

// New creates a new Server instance. A nil svc leaves the feedback API
// answering 503.
func New(cfg *config.Config, log *logger.Logger, svc services.FeedbackService, opts ...Option) *Server {
	s := &Server{
		cfg:           cfg,
		log:           log,
		healthHandler: handlers.NewHealthHandler(),
		docsHandler:   handlers.NewDocsHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if svc != nil {
		s.feedbackHandler = handlers.NewFeedbackHandler(svc)
		if s.rateLimiter != nil {
			s.feedbackHandler.UseOnSubmit(middleware.RateLimit(s.rateLimiter, log))
			s.log.Info("rate limiting enabled",
				"requests", cfg.Rate.Requests,
				"window", cfg.Rate.Window.String(),
			)
		}
	}

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// buildRouter wires middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID(),
		middleware.ClientIP(s.cfg.Rate.TrustProxy),
		middleware.Metrics(),
		middleware.RequestLogger(s.log),
		chimw.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins(s.cfg.Server.AllowedOrigins),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", middleware.HeaderXRequestID},
			ExposedHeaders: []string{
				middleware.HeaderXRequestID,
				"X-RateLimit-Limit",
				"X-RateLimit-Remaining",
				"X-RateLimit-Reset",
				"Retry-After",
			},
			MaxAge: 300,
		}),
	)

	r.Get("/health", s.healthHandler.Health)
	r.Get("/ready", s.healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/docs", s.docsHandler.UI)
	r.Get("/docs/openapi.yaml", s.docsHandler.OpenAPISpec)

	r.Route("/api/v1", func(r chi.Router) {
		if s.feedbackHandler == nil {
			r.HandleFunc("/*", unavailable)
			return
		}
		s.feedbackHandler.RegisterRoutes(r)
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func unavailable(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "feedback service not configured", http.StatusServiceUnavailable)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()

	// Listen first so Addr is known when port is 0
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("server starting", "address", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	// Not ready while draining
	s.healthHandler.SetReady(false)

	err := s.httpServer.Shutdown(ctx)

	if s.rateLimiter != nil {
		if closeErr := s.rateLimiter.Close(); closeErr != nil {
			s.log.Error("failed to close rate limiter", "error", closeErr.Error())
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		s.log.Error("shutdown error", "error", err.Error())
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HealthHandler returns the health handler.
func (s *Server) HealthHandler() *handlers.HealthHandler {
	return s.healthHandler
}
