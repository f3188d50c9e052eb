// Package handlers contains the HTTP handler implementations for the relay
// API: the two event ingestion routes and the operator surface.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"seedrelay/internal/core"
	"seedrelay/internal/delivery"
	"seedrelay/internal/events"
	"seedrelay/internal/metrics"
	"seedrelay/internal/types"
)

// threadIDHeader is the optional Discord forum routing hint passed through
// to the outbound payload untouched.
const threadIDHeader = "X-Discord-Thread-ID"

// Deliverer is the delivery engine contract the event routes depend on.
// Narrowed to an interface so tests can observe or suppress deliveries.
type Deliverer interface {
	Deliver(ctx context.Context, e *events.NotificationEvent) delivery.Result
}

// deliveryResponse is the envelope returned by both event routes. The HTTP
// status of the response mirrors AppriseResponse, the relay's final status.
type deliveryResponse struct {
	Status          string `json:"status"`
	AppriseResponse int    `json:"apprise_response"`
	RequestID       string `json:"request_id"`
}

// EventHandler serves the event ingestion routes.
type EventHandler struct {
	engine  Deliverer
	metrics *metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewEventHandler creates an EventHandler with the provided dependencies.
func NewEventHandler(engine Deliverer, recorder *metrics.Recorder, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		engine:  engine,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterRoutes mounts the event ingestion endpoints. These routes are
// public; upstream producers do not authenticate.
func (h *EventHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.HandleCrossSeed)
	r.Post("/qbitmanage", h.HandleQbitManage)
}

// HandleCrossSeed processes a cross-seed webhook: decode, classify, deliver.
// TEST events short-circuit with a 200 acknowledgment and never reach the
// delivery engine.
func (h *EventHandler) HandleCrossSeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := types.GetRequestID(ctx)

	// Request accounting happens before body parsing: malformed bodies
	// still count, rate-limited requests never got this far.
	h.metrics.RecordRequest(metrics.RouteWebhook, h.now())

	var payload events.CrossSeedPayload
	if err := core.DecodeJSON(w, r, &payload); err != nil {
		h.logger.WarnContext(ctx, "rejected cross-seed webhook",
			"request_id", requestID,
			"error", err.Error(),
		)
		core.Error(w, r, err)
		return
	}

	if payload.IsTest() {
		h.logger.InfoContext(ctx, "cross-seed test event acknowledged",
			"request_id", requestID,
		)
		core.JSON(w, r, http.StatusOK, map[string]string{
			"status":     "test acknowledged",
			"request_id": requestID,
		})
		return
	}

	event := events.NormalizeCrossSeed(payload, requestID, h.now())
	event.ThreadID = r.Header.Get(threadIDHeader)

	h.deliver(w, r, &event)
}

// HandleQbitManage processes a qbit_manage webhook. Run lifecycle markers
// (run_start, run_end) are suppressed with a 204 and never reach the
// delivery engine.
func (h *EventHandler) HandleQbitManage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := types.GetRequestID(ctx)

	h.metrics.RecordRequest(metrics.RouteQbitManage, h.now())

	var payload events.QbitManagePayload
	if err := core.DecodeJSON(w, r, &payload); err != nil {
		h.logger.WarnContext(ctx, "rejected qbit_manage webhook",
			"request_id", requestID,
			"error", err.Error(),
		)
		core.Error(w, r, err)
		return
	}

	if payload.Suppressed() {
		h.logger.InfoContext(ctx, "qbit_manage run marker suppressed",
			"request_id", requestID,
			"function", payload.Function,
		)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	event := events.NormalizeQbitManage(payload, requestID, h.now())
	event.ThreadID = r.Header.Get(threadIDHeader)

	h.deliver(w, r, &event)
}

// deliver runs the delivery engine and writes the shared response envelope.
// The send counters move exactly once per delivery, here and nowhere else.
func (h *EventHandler) deliver(w http.ResponseWriter, r *http.Request, event *events.NotificationEvent) {
	res := h.engine.Deliver(r.Context(), event)

	status := "failed"
	if res.Delivered {
		h.metrics.RecordSendSuccess()
		status = "forwarded"
	} else {
		h.metrics.RecordSendFailure()
	}

	core.JSON(w, r, res.StatusCode, deliveryResponse{
		Status:          status,
		AppriseResponse: res.StatusCode,
		RequestID:       event.CorrelationID,
	})
}
