package core

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"seedrelay/internal/types"
)

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// RouteRegistrar registers a group of domain handler routes on the router.
// The indirection avoids import cycles between core and handler packages.
type RouteRegistrar func(r chi.Router)

// MountRoutes defines the top-level routing hierarchy. It registers the
// global middleware chain, the probe endpoints, and the domain handler routes
// supplied by the application entry point.
func (s *Server) MountRoutes(registrars ...RouteRegistrar) {
	// Global Middleware Registration (strict order matters).
	s.registerGlobalMiddleware()

	// Probe endpoints (always public).
	s.router.Get("/health", s.HandleHealth)
	s.router.Get("/ready", s.HandleReady)
	s.router.Get("/startup", s.HandleStartup)

	// Domain handler routes.
	for _, registrar := range registrars {
		registrar(s.router)
	}
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. Recoverer     - Catches panics; outermost to catch all failures.
//  2. RequestID     - Generates the correlation ID before any other
//     processing, so every response (including 429s) carries it.
//  3. ClientIP      - Resolves reported client IP vs socket peer.
//  4. RequestLogger - Structured logging (redacted headers).
//  5. Lifecycle     - Records request duration into the Metrics Recorder
//     after the response is written, on every path.
//  6. RateLimit     - Global inter-request interval; runs before any body
//     parsing or handler accounting.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(ClientIPMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(s.LifecycleMiddleware)
	s.router.Use(s.RateLimit)
}

// RequestIDMiddleware generates a unique request ID for correlation across
// logs and responses. Incoming X-Request-ID headers are NOT trusted or
// reused; every inbound request gets a fresh identifier.
//
// The request ID is stored in the context via types.WithRequestID and set as
// the X-Request-ID response header for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
