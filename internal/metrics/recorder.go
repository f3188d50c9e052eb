// Package metrics implements the process-wide delivery counters and gauges.
//
// All state lives behind a single mutex in the Recorder. Counters are
// monotonic; gauges are last-write-wins, so under concurrency the recorded
// duration is whichever request finished most recently, not the slowest.
// That simplification is part of the contract and must be preserved.
//
// Two read paths expose the same state: Snapshot (structured JSON) and
// RenderPrometheus (text exposition with alert flags derived at read time).
// Neither read path mutates.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Route identifies an event ingestion route for last-event bookkeeping.
type Route string

const (
	RouteWebhook    Route = "webhook"
	RouteQbitManage Route = "qbitmanage"
)

// Alert thresholds evaluated at exposition time; nothing is stored.
const (
	failedSendsAlertThreshold = 5
	slowRequestAlertThreshold = 2 * time.Second
)

// Recorder owns the process-wide mutable counters. It is constructed once at
// startup and has no reset API beyond process restart.
type Recorder struct {
	mu sync.Mutex

	startedAt           time.Time
	totalRequests       uint64
	successfulSends     uint64
	failedSends         uint64
	lastEvent           map[Route]time.Time
	lastRequestDuration time.Duration
	durationRecorded    bool
}

// NewRecorder creates a Recorder anchored at the given process start time.
func NewRecorder(startedAt time.Time) *Recorder {
	return &Recorder{
		startedAt: startedAt,
		lastEvent: make(map[Route]time.Time),
	}
}

// StartedAt returns the process start time the recorder was anchored at.
func (r *Recorder) StartedAt() time.Time {
	return r.startedAt
}

// RecordRequest counts an inbound event request and stamps the route's
// last-event timestamp. Suppressed and TEST events are counted here too;
// only the send counters exclude them.
func (r *Recorder) RecordRequest(route Route, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests++
	r.lastEvent[route] = now
}

// RecordSendSuccess increments the successful delivery counter.
func (r *Recorder) RecordSendSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successfulSends++
}

// RecordSendFailure increments the exhausted delivery counter. Exactly one
// increment per exhausted delivery, regardless of fallback fan-out size.
func (r *Recorder) RecordSendFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedSends++
}

// ObserveRequestDuration overwrites the last-request duration gauge.
func (r *Recorder) ObserveRequestDuration(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRequestDuration = d
	r.durationRecorded = true
}

// Snapshot is the structured read path over the recorder state.
type Snapshot struct {
	TotalRequests              uint64     `json:"total_requests"`
	SuccessfulSends            uint64     `json:"successful_sends"`
	FailedSends                uint64     `json:"failed_sends"`
	LastWebhookEvent           *time.Time `json:"last_webhook_event,omitempty"`
	LastQbitManageEvent        *time.Time `json:"last_qbitmanage_event,omitempty"`
	LastRequestDurationSeconds float64    `json:"last_request_duration_seconds"`
}

// Snapshot returns a point-in-time copy of all counters and gauges.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		TotalRequests:              r.totalRequests,
		SuccessfulSends:            r.successfulSends,
		FailedSends:                r.failedSends,
		LastRequestDurationSeconds: r.lastRequestDuration.Seconds(),
	}
	if t, ok := r.lastEvent[RouteWebhook]; ok {
		tt := t
		s.LastWebhookEvent = &tt
	}
	if t, ok := r.lastEvent[RouteQbitManage]; ok {
		tt := t
		s.LastQbitManageEvent = &tt
	}
	return s
}

// RenderPrometheus renders the text exposition format. The alert flag series
// are computed from the live counters on every render; they are never stored.
func (r *Recorder) RenderPrometheus() string {
	r.mu.Lock()
	totalRequests := r.totalRequests
	successfulSends := r.successfulSends
	failedSends := r.failedSends
	lastDuration := r.lastRequestDuration
	durationRecorded := r.durationRecorded
	lastWebhook, webhookSeen := r.lastEvent[RouteWebhook]
	lastQbm, qbmSeen := r.lastEvent[RouteQbitManage]
	startedAt := r.startedAt
	r.mu.Unlock()

	failedAlert := 0
	if failedSends > failedSendsAlertThreshold {
		failedAlert = 1
	}
	slowAlert := 0
	if durationRecorded && lastDuration > slowRequestAlertThreshold {
		slowAlert = 1
	}

	var b strings.Builder
	writeMetric := func(name, help, typ string, value string) {
		fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, typ)
		fmt.Fprintf(&b, "%s %s\n", name, value)
	}

	writeMetric("seedrelay_requests_total",
		"Total inbound event requests accepted by the delivery routes.",
		"counter", fmt.Sprintf("%d", totalRequests))
	writeMetric("seedrelay_sends_successful_total",
		"Deliveries acknowledged by the primary relay.",
		"counter", fmt.Sprintf("%d", successfulSends))
	writeMetric("seedrelay_sends_failed_total",
		"Deliveries that exhausted all primary attempts.",
		"counter", fmt.Sprintf("%d", failedSends))

	fmt.Fprintf(&b, "# HELP seedrelay_last_event_timestamp_seconds Unix time of the last event seen per route.\n")
	fmt.Fprintf(&b, "# TYPE seedrelay_last_event_timestamp_seconds gauge\n")
	if webhookSeen {
		fmt.Fprintf(&b, "seedrelay_last_event_timestamp_seconds{route=\"webhook\"} %d\n", lastWebhook.Unix())
	}
	if qbmSeen {
		fmt.Fprintf(&b, "seedrelay_last_event_timestamp_seconds{route=\"qbitmanage\"} %d\n", lastQbm.Unix())
	}

	writeMetric("seedrelay_last_request_duration_seconds",
		"Duration of the most recently completed request.",
		"gauge", fmt.Sprintf("%.6f", lastDuration.Seconds()))
	writeMetric("seedrelay_process_start_time_seconds",
		"Unix time the process started.",
		"gauge", fmt.Sprintf("%d", startedAt.Unix()))
	writeMetric("seedrelay_alert_failed_sends",
		"1 when the failed send counter has crossed its alert threshold.",
		"gauge", fmt.Sprintf("%d", failedAlert))
	writeMetric("seedrelay_alert_slow_request",
		"1 when the last request took longer than the latency alert threshold.",
		"gauge", fmt.Sprintf("%d", slowAlert))

	return b.String()
}
