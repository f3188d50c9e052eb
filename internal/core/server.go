// Package core provides the API chassis for the relay. It creates a chi
// router and enforces cross-cutting concerns -- recovery, correlation,
// logging, traffic shaping, and error handling -- before requests reach
// domain-specific handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seedrelay/internal/config"
	"seedrelay/internal/metrics"
)

// Server encapsulates all dependencies for the relay API, allowing for easy
// injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Recorder

	limiter *intervalLimiter
	router  *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a fail-fast check on critical
// dependencies.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	recorder *metrics.Recorder,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if recorder == nil {
		return nil, fmt.Errorf("metrics recorder must not be nil")
	}

	return &Server{
		Config:  cfg,
		Logger:  logger,
		Metrics: recorder,
		limiter: newIntervalLimiter(cfg.Traffic.RateLimitInterval),
		router:  chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router, for use by
// http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration. This is used
// internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
