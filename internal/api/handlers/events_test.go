package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedrelay/internal/config"
	"seedrelay/internal/core"
	"seedrelay/internal/delivery"
	"seedrelay/internal/events"
	"seedrelay/internal/metrics"
	"seedrelay/internal/types"
)

// fakeDeliverer records delivered events and returns a canned result.
type fakeDeliverer struct {
	result delivery.Result
	events []*events.NotificationEvent
}

func (f *fakeDeliverer) Deliver(_ context.Context, e *events.NotificationEvent) delivery.Result {
	f.events = append(f.events, e)
	return f.result
}

type eventFixture struct {
	handler  *EventHandler
	engine   *fakeDeliverer
	recorder *metrics.Recorder
	router   chi.Router
}

func newEventFixture(t *testing.T, result delivery.Result) *eventFixture {
	t.Helper()

	engine := &fakeDeliverer{result: result}
	recorder := metrics.NewRecorder(time.Now())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewEventHandler(engine, recorder, logger)
	router := chi.NewRouter()
	h.RegisterRoutes(router)

	return &eventFixture{handler: h, engine: engine, recorder: recorder, router: router}
}

func (f *eventFixture) post(path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(types.WithRequestID(req.Context(), "req-42"))
	if mutate != nil {
		mutate(req)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCrossSeedDelivered(t *testing.T) {
	fx := newEventFixture(t, delivery.Result{
		Delivered:  true,
		StatusCode: http.StatusOK,
		Attempts:   1,
	})

	rec := fx.post("/webhook", `{
		"event": "inject",
		"name": "Some.Release.1080p",
		"extra": {"result": "SUCCESS", "trackers": ["alpha", "beta"]}
	}`, func(r *http.Request) {
		r.Header.Set("X-Discord-Thread-ID", "thread-7")
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp deliveryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "forwarded", resp.Status)
	assert.Equal(t, http.StatusOK, resp.AppriseResponse)
	assert.Equal(t, "req-42", resp.RequestID)

	require.Len(t, fx.engine.events, 1)
	delivered := fx.engine.events[0]
	assert.Equal(t, "Some.Release.1080p", delivered.SubjectName)
	assert.Equal(t, "thread-7", delivered.ThreadID)
	assert.Equal(t, "req-42", delivered.CorrelationID)

	snap := fx.recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.TotalRequests)
	assert.Equal(t, uint64(1), snap.SuccessfulSends)
	assert.Equal(t, uint64(0), snap.FailedSends)
	assert.NotNil(t, snap.LastWebhookEvent)
}

func TestCrossSeedDeliveryFailed(t *testing.T) {
	fx := newEventFixture(t, delivery.Result{
		Delivered:  false,
		StatusCode: http.StatusServiceUnavailable,
		Attempts:   3,
	})

	rec := fx.post("/webhook", `{"event":"inject","name":"X","extra":{"result":"FAILURE"}}`, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp deliveryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, http.StatusServiceUnavailable, resp.AppriseResponse)

	snap := fx.recorder.Snapshot()
	assert.Equal(t, uint64(0), snap.SuccessfulSends)
	assert.Equal(t, uint64(1), snap.FailedSends, "one failed delivery counts exactly once")
}

func TestCrossSeedTestEventShortCircuits(t *testing.T) {
	fx := newEventFixture(t, delivery.Result{Delivered: true, StatusCode: http.StatusOK})

	rec := fx.post("/webhook", `{"event":"TEST"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test acknowledged")
	assert.Contains(t, rec.Body.String(), "req-42")
	assert.Empty(t, fx.engine.events, "test events never reach the engine")

	snap := fx.recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.TotalRequests, "test events still count as requests")
	assert.Equal(t, uint64(0), snap.SuccessfulSends)
}

func TestCrossSeedMalformedBody(t *testing.T) {
	fx := newEventFixture(t, delivery.Result{Delivered: true, StatusCode: http.StatusOK})

	rec := fx.post("/webhook", `{"event":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_invalid_json")
	assert.Empty(t, fx.engine.events)

	snap := fx.recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.TotalRequests,
		"requests are counted before body parsing")
}

func TestQbitManageDelivered(t *testing.T) {
	fx := newEventFixture(t, delivery.Result{Delivered: true, StatusCode: http.StatusOK})

	rec := fx.post("/qbitmanage", `{
		"function": "rem_unregistered",
		"name": "Stale.Release",
		"summary": "cleaned 3 torrents"
	}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fx.engine.events, 1)
	assert.Equal(t, events.SourceQbitManage, fx.engine.events[0].Source)
	assert.Equal(t, "cleaned 3 torrents", fx.engine.events[0].SummaryText)

	snap := fx.recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.TotalRequests)
	assert.NotNil(t, snap.LastQbitManageEvent)
	assert.Nil(t, snap.LastWebhookEvent, "routes track their own last-event stamp")
}

// panickyDeliverer simulates a programming error inside the delivery path.
type panickyDeliverer struct{}

func (panickyDeliverer) Deliver(context.Context, *events.NotificationEvent) delivery.Result {
	panic("encode relay payload: boom")
}

func TestDeliveryPanicDoesNotCountAsFailedSend(t *testing.T) {
	cfg := &config.Config{
		Environment: "local",
		Service:     "seedrelay",
		LogLevel:    "info",
	}
	recorder := metrics.NewRecorder(time.Now())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := core.NewServer(cfg, logger, recorder)
	require.NoError(t, err)

	h := NewEventHandler(panickyDeliverer{}, recorder, logger)
	srv.MountRoutes(h.RegisterRoutes)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"event":"inject","name":"X","extra":{"result":"SUCCESS"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_unexpected_error")

	snap := recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.TotalRequests)
	assert.Zero(t, snap.SuccessfulSends)
	assert.Zero(t, snap.FailedSends, "an internal error is not a delivery outcome")
}

func TestQbitManageRunMarkersSuppressed(t *testing.T) {
	for _, function := range []string{"run_start", "run_end"} {
		t.Run(function, func(t *testing.T) {
			fx := newEventFixture(t, delivery.Result{Delivered: true, StatusCode: http.StatusOK})

			rec := fx.post("/qbitmanage", `{"function":"`+function+`"}`, nil)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Empty(t, rec.Body.String(), "204 carries no body")
			assert.Empty(t, fx.engine.events)

			snap := fx.recorder.Snapshot()
			assert.Equal(t, uint64(1), snap.TotalRequests)
		})
	}
}
