// Package delivery implements the resilient forwarding pipeline: primary
// relay attempts with fixed backoff behind a circuit breaker, and a
// sequential fallback fan-out once the primary is exhausted.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"seedrelay/internal/events"
)

const (
	// maxAttempts bounds primary relay attempts per delivery.
	maxAttempts = 3

	// attemptTimeout caps each individual attempt, primary or fallback.
	attemptTimeout = 5 * time.Second

	// baseBackoff seeds the doubling wait between attempts (1s, then 2s).
	baseBackoff = time.Second

	// maxResponseBodyRead limits how much of a relay response body is
	// retained for the response envelope and logs.
	maxResponseBodyRead = 4096
)

// FallbackChannel is a best-effort secondary notification target. Fallbacks
// get exactly one attempt each; their failures are logged, never retried, and
// never influence the delivery outcome.
type FallbackChannel interface {
	Name() string
	Send(ctx context.Context, e *events.NotificationEvent) error
}

// Result is the terminal outcome of one delivery.
type Result struct {
	// Delivered is true when the primary relay acknowledged with a 2xx.
	Delivered bool

	// StatusCode is the last HTTP status seen from the primary relay, or
	// 500 when every attempt failed before producing a response.
	StatusCode int

	// Attempts is how many primary attempts were actually made.
	Attempts int

	// RelayBody is the (truncated) response body from the last primary
	// attempt, surfaced to the caller in the response envelope.
	RelayBody string
}

// deliveryState drives the attempt loop. Every attempt ends in exactly one
// of these states.
type deliveryState int

const (
	stateSuccess deliveryState = iota
	stateRetry
	stateExhausted
)

// Engine delivers canonical events to the Apprise relay. A single breaker
// guards the relay across all deliveries; its trip threshold is set high
// enough that one delivery's attempt budget can never open it alone.
type Engine struct {
	relayURL  string
	iconURL   string
	userAgent string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	fallbacks []FallbackChannel
	logger    *slog.Logger
	sleepFn   func(time.Duration)
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithSleepFunc overrides the wait between attempts. Intended for tests.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(e *Engine) {
		e.sleepFn = fn
	}
}

// NewEngine creates a delivery engine over the given relay endpoint.
func NewEngine(
	relayURL string,
	iconURL string,
	userAgent string,
	client *http.Client,
	fallbacks []FallbackChannel,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "apprise-relay",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 9
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	e := &Engine{
		relayURL:  relayURL,
		iconURL:   iconURL,
		userAgent: userAgent,
		client:    client,
		breaker:   cb,
		fallbacks: fallbacks,
		logger:    logger,
		sleepFn:   time.Sleep,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Deliver pushes the event to the primary relay with at most maxAttempts
// tries, waiting 1s then 2s between failures. On exhaustion it fans out to
// the configured fallback channels, one shot each. Deliver never returns an
// error; the Result carries everything the caller needs.
func (e *Engine) Deliver(ctx context.Context, event *events.NotificationEvent) Result {
	// A delivery runs to a terminal outcome once it starts: a producer
	// disconnect or upstream timeout must not abort remaining attempts or
	// the fallback fan-out. Context values (correlation id) survive;
	// cancellation does not. Per-attempt deadlines still apply below.
	ctx = context.WithoutCancel(ctx)

	payload := BuildApprisePayload(event, e.iconURL)
	body, err := json.Marshal(payload)
	if err != nil {
		// The payload is plain strings; a marshal failure here is a
		// programming error, not a delivery outcome.
		panic(fmt.Sprintf("encode relay payload: %v", err))
	}

	res := Result{StatusCode: http.StatusInternalServerError}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt

		state := e.attempt(ctx, event, body, attempt, &res)
		switch state {
		case stateSuccess:
			res.Delivered = true
			return res
		case stateExhausted:
			e.fanOut(ctx, event, res)
			return res
		case stateRetry:
			// Wait only when another attempt remains.
			if attempt < maxAttempts {
				e.sleepFn(baseBackoff << (attempt - 1))
			}
		}
	}

	e.fanOut(ctx, event, res)
	return res
}

// attempt performs one primary relay POST and classifies its outcome. The
// result's StatusCode and RelayBody are updated whenever the relay produced a
// response, so the caller always reports the last thing the relay said.
func (e *Engine) attempt(ctx context.Context, event *events.NotificationEvent, body []byte, attempt int, res *Result) deliveryState {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, e.relayURL, bytes.NewReader(body))
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to build relay request",
			"request_id", event.CorrelationID,
			"error", err.Error(),
		)
		return stateExhausted
	}
	req.Header.Set("Content-Type", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	if event.CorrelationID != "" {
		req.Header.Set("X-Request-ID", event.CorrelationID)
	}

	e.logger.InfoContext(ctx, "delivering notification",
		"request_id", event.CorrelationID,
		"source", string(event.Source),
		"attempt", attempt,
		"max_attempts", maxAttempts,
	)

	resp, execErr := e.breaker.Execute(func() (*http.Response, error) {
		r, doErr := e.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			return r, fmt.Errorf("relay returned %d", r.StatusCode)
		}
		return r, nil
	})

	if resp != nil {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
		resp.Body.Close()
		res.StatusCode = resp.StatusCode
		res.RelayBody = string(snippet)
	}

	if execErr == nil {
		e.logger.InfoContext(ctx, "notification delivered",
			"request_id", event.CorrelationID,
			"status", res.StatusCode,
			"attempt", attempt,
		)
		return stateSuccess
	}

	e.logger.WarnContext(ctx, "relay attempt failed",
		"request_id", event.CorrelationID,
		"attempt", attempt,
		"status", res.StatusCode,
		"error", execErr.Error(),
	)

	// An open breaker means the relay is already known bad; burning the
	// remaining attempts would only delay the fallbacks.
	if errors.Is(execErr, gobreaker.ErrOpenState) || errors.Is(execErr, gobreaker.ErrTooManyRequests) {
		e.logger.WarnContext(ctx, "relay circuit breaker open, abandoning remaining attempts",
			"request_id", event.CorrelationID,
			"attempt", attempt,
		)
		return stateExhausted
	}

	if attempt == maxAttempts {
		return stateExhausted
	}
	return stateRetry
}

// fanOut gives each fallback channel one attempt with its own timeout.
// Fallback outcomes are logged and nothing else; the delivery has already
// failed by the time this runs.
func (e *Engine) fanOut(ctx context.Context, event *events.NotificationEvent, res Result) {
	e.logger.ErrorContext(ctx, "delivery exhausted, fanning out to fallbacks",
		"request_id", event.CorrelationID,
		"source", string(event.Source),
		"attempts", res.Attempts,
		"last_status", res.StatusCode,
		"fallbacks", len(e.fallbacks),
	)

	for _, fb := range e.fallbacks {
		fbCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err := fb.Send(fbCtx, event)
		cancel()

		if err != nil {
			e.logger.WarnContext(ctx, "fallback notification failed",
				"request_id", event.CorrelationID,
				"fallback", fb.Name(),
				"error", err.Error(),
			)
			continue
		}
		e.logger.InfoContext(ctx, "fallback notification sent",
			"request_id", event.CorrelationID,
			"fallback", fb.Name(),
		)
	}
}
