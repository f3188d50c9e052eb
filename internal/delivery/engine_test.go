package delivery

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedrelay/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent() *events.NotificationEvent {
	e := events.NormalizeCrossSeed(events.CrossSeedPayload{
		Event: "inject",
		Name:  "Some.Release",
		Extra: events.CrossSeedExtra{Result: "SUCCESS", Trackers: []string{"tracker-a"}},
	}, "req-test", time.Now())
	return &e
}

// recordingFallback counts Send invocations and optionally fails. The fan-out
// is sequential, so lastCtxErr needs no synchronization.
type recordingFallback struct {
	name       string
	calls      atomic.Int64
	err        error
	lastCtxErr error
}

func (f *recordingFallback) Name() string { return f.name }

func (f *recordingFallback) Send(ctx context.Context, _ *events.NotificationEvent) error {
	f.calls.Add(1)
	f.lastCtxErr = ctx.Err()
	return f.err
}

func newTestEngine(t *testing.T, relayURL string, fallbacks []FallbackChannel, sleeps *[]time.Duration) *Engine {
	t.Helper()
	return NewEngine(
		relayURL,
		"https://example.com/icon.png",
		"seedrelay-test/1.0",
		&http.Client{},
		fallbacks,
		testLogger(),
		WithSleepFunc(func(d time.Duration) {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
		}),
	)
}

func TestDeliverSuccessFirstAttempt(t *testing.T) {
	var attempts atomic.Int64
	var got ApprisePayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "req-test", r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	fb := &recordingFallback{name: "slack"}
	engine := newTestEngine(t, server.URL, []FallbackChannel{fb}, nil)

	res := engine.Deliver(context.Background(), testEvent())

	assert.True(t, res.Delivered)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, `{"status":"ok"}`, res.RelayBody)
	assert.Equal(t, int64(1), attempts.Load())
	assert.Equal(t, int64(0), fb.calls.Load(), "fallbacks stay idle on success")

	assert.Equal(t, "🎯 cross-seed match injected!", got.Title)
	assert.Contains(t, got.Body, "**Torrent:** Some.Release")
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var sleeps []time.Duration
	engine := newTestEngine(t, server.URL, nil, &sleeps)

	res := engine.Deliver(context.Background(), testEvent())

	assert.True(t, res.Delivered)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int64(3), attempts.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps,
		"fixed backoff between failed attempts")
}

func TestDeliverExhaustionFansOut(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("relay down"))
	}))
	defer server.Close()

	slack := &recordingFallback{name: "slack"}
	telegram := &recordingFallback{name: "telegram"}

	var sleeps []time.Duration
	engine := newTestEngine(t, server.URL, []FallbackChannel{slack, telegram}, &sleeps)

	res := engine.Deliver(context.Background(), testEvent())

	assert.False(t, res.Delivered)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode,
		"final status is the relay's last observed status")
	assert.Equal(t, 3, res.Attempts, "exactly three primary attempts")
	assert.Equal(t, int64(3), attempts.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps,
		"no wait after the final attempt")
	assert.Equal(t, int64(1), slack.calls.Load(), "each fallback invoked exactly once")
	assert.Equal(t, int64(1), telegram.calls.Load())
}

func TestDeliverFallbackFailureDoesNotBlockNext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	slack := &recordingFallback{name: "slack", err: assert.AnError}
	telegram := &recordingFallback{name: "telegram"}

	engine := newTestEngine(t, server.URL, []FallbackChannel{slack, telegram}, nil)
	res := engine.Deliver(context.Background(), testEvent())

	assert.False(t, res.Delivered)
	assert.Equal(t, int64(1), slack.calls.Load())
	assert.Equal(t, int64(1), telegram.calls.Load(),
		"a failing fallback must not block the next one")
}

func TestDeliverTransportOnlyFailureReports500(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	// Close immediately so every attempt is a connection error.
	server.Close()

	engine := newTestEngine(t, server.URL, nil, nil)
	res := engine.Deliver(context.Background(), testEvent())

	assert.False(t, res.Delivered)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, 3, res.Attempts)
}

func TestDeliverRunsToCompletionAfterCallerCancel(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fb := &recordingFallback{name: "slack"}
	engine := newTestEngine(t, server.URL, []FallbackChannel{fb}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := engine.Deliver(ctx, testEvent())

	assert.True(t, res.Delivered, "a delivery in flight ignores caller cancellation")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int64(1), attempts.Load())
	assert.Equal(t, int64(0), fb.calls.Load())
}

func TestDeliverFanOutSurvivesCallerCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fb := &recordingFallback{name: "telegram"}
	engine := newTestEngine(t, server.URL, []FallbackChannel{fb}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := engine.Deliver(ctx, testEvent())

	assert.False(t, res.Delivered)
	assert.Equal(t, 3, res.Attempts, "full attempt budget despite the dead caller context")
	assert.Equal(t, int64(1), fb.calls.Load())
	assert.NoError(t, fb.lastCtxErr, "fallbacks receive a live context")
}

func TestDeliver4xxIsRetried(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	engine := newTestEngine(t, server.URL, nil, nil)
	res := engine.Deliver(context.Background(), testEvent())

	assert.False(t, res.Delivered)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, int64(3), attempts.Load(), "every non-2xx consumes the attempt budget")
}
