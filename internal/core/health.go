package core

import (
	"net/http"
	"time"
)

// Probe endpoints. The relay has no critical local dependencies (the
// downstream relay being unreachable is handled by the delivery pipeline, not
// by failing probes), so all three report success once the process is
// serving.

// HandleHealth is the liveness probe. Mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleReady is the readiness probe. Mounted at GET /ready.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStartup reports the process start time. Mounted at GET /startup.
func (s *Server) HandleStartup(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{
		"status":     "started",
		"started_at": s.Metrics.StartedAt().UTC().Format(time.RFC3339),
	})
}
