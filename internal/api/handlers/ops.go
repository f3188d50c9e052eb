package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"seedrelay/internal/config"
	"seedrelay/internal/core"
	"seedrelay/internal/metrics"
)

// OpsHandler serves the operator surface: metrics in both representations
// and the debug snapshot. All routes sit behind the access guard supplied at
// registration time.
type OpsHandler struct {
	cfg     *config.Config
	metrics *metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewOpsHandler creates an OpsHandler with the provided dependencies.
func NewOpsHandler(cfg *config.Config, recorder *metrics.Recorder, logger *slog.Logger) *OpsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpsHandler{
		cfg:     cfg,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterRoutes mounts the operator endpoints behind the given guard
// middleware (the bearer token check, or a pass-through when no token is
// configured).
func (h *OpsHandler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Get("/metrics", h.HandleMetrics)
		r.Get("/metrics/prometheus", h.HandlePrometheus)
		r.Get("/debug", h.HandleDebug)
	})
}

// HandleMetrics returns the structured JSON snapshot of all counters and
// gauges.
func (h *OpsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.metrics.Snapshot())
}

// HandlePrometheus returns the text exposition rendering of the same state.
func (h *OpsHandler) HandlePrometheus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.metrics.RenderPrometheus()))
}

// debugConfig is the masked configuration view exposed by /debug. Secrets
// report only whether they are set.
type debugConfig struct {
	Environment      string `json:"environment"`
	Service          string `json:"service"`
	LogLevel         string `json:"log_level"`
	RelayURL         string `json:"relay_url"`
	IconURL          string `json:"icon_url"`
	AuthConfigured   bool   `json:"auth_configured"`
	SlackFallback    bool   `json:"slack_fallback"`
	TelegramFallback bool   `json:"telegram_fallback"`
}

// debugResponse is the /debug response body.
type debugResponse struct {
	UptimeSeconds float64          `json:"uptime_seconds"`
	StartedAt     string           `json:"started_at"`
	Version       string           `json:"version"`
	Commit        string           `json:"commit"`
	Config        debugConfig      `json:"config"`
	Metrics       metrics.Snapshot `json:"metrics"`
}

// HandleDebug returns process uptime, the masked configuration, and the
// current metrics snapshot.
func (h *OpsHandler) HandleDebug(w http.ResponseWriter, r *http.Request) {
	startedAt := h.metrics.StartedAt()

	core.JSON(w, r, http.StatusOK, debugResponse{
		UptimeSeconds: h.now().Sub(startedAt).Seconds(),
		StartedAt:     startedAt.UTC().Format(time.RFC3339),
		Version:       h.cfg.Build.Version,
		Commit:        h.cfg.Build.Commit,
		Config: debugConfig{
			Environment:      h.cfg.Environment,
			Service:          h.cfg.Service,
			LogLevel:         h.cfg.LogLevel,
			RelayURL:         h.cfg.Relay.URL,
			IconURL:          h.cfg.Relay.IconURL,
			AuthConfigured:   h.cfg.Auth.Token.IsSet(),
			SlackFallback:    h.cfg.Fallback.SlackWebhookURL.IsSet(),
			TelegramFallback: h.cfg.Fallback.TelegramBotToken.IsSet() && h.cfg.Fallback.TelegramChatID != "",
		},
		Metrics: h.metrics.Snapshot(),
	})
}
