// Package events defines the canonical notification model and the
// classifiers that map raw producer webhooks onto it.
//
// Classification is total: absent or malformed fields resolve to documented
// defaults, never to an error. A NotificationEvent is fully resolved (subject,
// trackers, presentation hints) before it is handed to the delivery engine;
// nothing downstream ever looks at the raw payload again.
package events

import (
	"strings"
	"time"
)

// Source identifies which upstream tool emitted the raw payload.
type Source string

const (
	SourceCrossSeed  Source = "cross-seed"
	SourceQbitManage Source = "qbitmanage"
)

// Result is the closed outcome classification. Producer payloads carry a
// loosely-typed result string; ParseResult folds anything unrecognized into
// ResultUnknown so a typo upstream can never change branching behavior.
type Result string

const (
	ResultSuccess   Result = "SUCCESS"
	ResultFailure   Result = "FAILURE"
	ResultSaved     Result = "SAVED"
	ResultCompleted Result = "COMPLETED"
	ResultUnknown   Result = "UNKNOWN"
)

// ParseResult maps a raw producer result string onto the closed Result enum.
// Matching is case-insensitive; unrecognized values become ResultUnknown.
func ParseResult(raw string) Result {
	switch Result(strings.ToUpper(strings.TrimSpace(raw))) {
	case ResultSuccess:
		return ResultSuccess
	case ResultFailure:
		return ResultFailure
	case ResultSaved:
		return ResultSaved
	case ResultCompleted:
		return ResultCompleted
	default:
		return ResultUnknown
	}
}

// UnknownSubject is the sentinel subject used when no candidate field is present.
const UnknownSubject = "Unknown"

// NotificationEvent is the canonical unit the pipeline operates on.
type NotificationEvent struct {
	Source        Source
	EventKind     string
	Result        Result
	SubjectName   string
	TrackerList   []string
	SummaryText   string
	Emoji         string
	ColorCode     string
	CorrelationID string
	ThreadID      string
	CreatedAt     time.Time
}

// TrackerDisplay renders the tracker list for presentation: a comma-joined
// string, or "None" when the list is empty.
func (e *NotificationEvent) TrackerDisplay() string {
	if len(e.TrackerList) == 0 {
		return "None"
	}
	return strings.Join(e.TrackerList, ", ")
}

// Title returns the display title for the event's result classification.
func (e *NotificationEvent) Title() string {
	return styleForResult(e.Result).Title
}

// KindStyle holds the presentation hints resolved from an event kind.
type KindStyle struct {
	Emoji string
	Color string
}

// ResultStyle holds the presentation attributes resolved from a Result.
type ResultStyle struct {
	Emoji   string
	Title   string
	Color   string
	Summary string
}

// Fixed color palette (hex strings, shared with the fallback formatters).
const (
	colorGreen = "#4CAF50"
	colorRed   = "#F44336"
	colorBlue  = "#2196F3"
	colorAmber = "#FFC107"
	colorGray  = "#9E9E9E"
)

// eventKindStyles maps producer event kinds to emoji/color hints. The zero
// key holds the required default entry for unmatched kinds.
var eventKindStyles = map[string]KindStyle{
	"inject":           {Emoji: "🎯", Color: colorGreen},
	"results":          {Emoji: "🎯", Color: colorGreen},
	"test":             {Emoji: "🧪", Color: colorBlue},
	"upload":           {Emoji: "⬆️", Color: colorBlue},
	"check":            {Emoji: "🔍", Color: colorBlue},
	"recheck":          {Emoji: "🔍", Color: colorBlue},
	"cross_seed":       {Emoji: "🌱", Color: colorGreen},
	"tag_update":       {Emoji: "🏷️", Color: colorBlue},
	"rem_unregistered": {Emoji: "🗑️", Color: colorAmber},
	"rem_orphaned":     {Emoji: "🧹", Color: colorAmber},
	"cleanup_dirs":     {Emoji: "🧹", Color: colorAmber},
}

var defaultKindStyle = KindStyle{Emoji: "📣", Color: colorGray}

// resultStyles maps each Result to its title, color, and summary wording.
// The wording for the cross-seed results is the original notification text
// users already have alerting rules against, so it must not drift.
var resultStyles = map[Result]ResultStyle{
	ResultSuccess: {
		Emoji:   "🎯",
		Title:   "cross-seed match injected!",
		Color:   colorGreen,
		Summary: "**Status:** ✅ injection successful",
	},
	ResultFailure: {
		Emoji:   "❌",
		Title:   "cross-seed injection failed!",
		Color:   colorRed,
		Summary: "**Status:** ❌ injection failed\n🔴 **action needed:** manual check recommended.",
	},
	ResultSaved: {
		Emoji:   "💾",
		Title:   "cross-seed torrent saved!",
		Color:   colorBlue,
		Summary: "**Status:** 💾 torrent saved for manual review.",
	},
	ResultCompleted: {
		Emoji:   "✅",
		Title:   "task completed",
		Color:   colorGreen,
		Summary: "**Status:** ✅ run completed",
	},
	ResultUnknown: {
		Emoji:   "📣",
		Title:   "notification",
		Color:   colorGray,
		Summary: "**Status:** ❓ unknown result",
	},
}

// styleForKind resolves the emoji/color hints for an event kind, falling back
// to the default entry for unmatched keys.
func styleForKind(kind string) KindStyle {
	if s, ok := eventKindStyles[strings.ToLower(kind)]; ok {
		return s
	}
	return defaultKindStyle
}

// styleForResult resolves the presentation attributes for a Result. Every
// Result constant has an entry; anything else falls back to the Unknown row.
func styleForResult(r Result) ResultStyle {
	if s, ok := resultStyles[r]; ok {
		return s
	}
	return resultStyles[ResultUnknown]
}

// resolvePresentation fills the emoji and color fields of an event. A
// classified result wins over the kind table; events without a usable result
// (most qbit_manage functions) take both hints from the kind entry.
func resolvePresentation(e *NotificationEvent) {
	if e.Result != ResultUnknown {
		rs := styleForResult(e.Result)
		e.Emoji = rs.Emoji
		e.ColorCode = rs.Color
		return
	}
	ks := styleForKind(e.EventKind)
	e.Emoji = ks.Emoji
	e.ColorCode = ks.Color
}
