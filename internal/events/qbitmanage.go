package events

import (
	"time"
)

// qbit_manage run lifecycle markers. These are housekeeping pings, not
// user-facing outcomes, and are suppressed before delivery.
const (
	FunctionRunStart = "run_start"
	FunctionRunEnd   = "run_end"
)

// QbitManagePayload is the flat shape of a qbit_manage webhook body.
// Unknown fields are ignored.
type QbitManagePayload struct {
	Function string `json:"function"`
	Name     string `json:"name"`
	Result   string `json:"result"`
	Summary  string `json:"summary"`
}

// Suppressed reports whether the payload is a run lifecycle marker that
// should be acknowledged without a delivery attempt.
func (p QbitManagePayload) Suppressed() bool {
	return p.Function == FunctionRunStart || p.Function == FunctionRunEnd
}

// subjectName resolves the display subject: explicit name, then the task
// (function) name, then the Unknown sentinel.
func (p QbitManagePayload) subjectName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Function != "":
		return p.Function
	default:
		return UnknownSubject
	}
}

// NormalizeQbitManage classifies a qbit_manage payload into the canonical
// event. The summary text prefers the producer's own summary field and falls
// back to the result table's wording.
func NormalizeQbitManage(p QbitManagePayload, correlationID string, now time.Time) NotificationEvent {
	e := NotificationEvent{
		Source:        SourceQbitManage,
		EventKind:     p.Function,
		Result:        ParseResult(p.Result),
		SubjectName:   p.subjectName(),
		CorrelationID: correlationID,
		CreatedAt:     now,
	}
	if p.Summary != "" {
		e.SummaryText = p.Summary
	} else {
		e.SummaryText = styleForResult(e.Result).Summary
	}
	resolvePresentation(&e)
	return e
}
