package events

import (
	"time"
)

// TestEvent is the cross-seed smoke-test event name. Requests carrying it are
// acknowledged at the handler without entering the delivery pipeline.
const TestEvent = "TEST"

// CrossSeedPayload is the minimal shape of a cross-seed webhook body. Unknown
// fields are ignored; cross-seed adds fields between releases and the
// classifier must stay total.
type CrossSeedPayload struct {
	Event string         `json:"event"`
	Name  string         `json:"name"`
	Extra CrossSeedExtra `json:"extra"`
}

// CrossSeedExtra is the nested detail object cross-seed attaches to most events.
type CrossSeedExtra struct {
	Event      string            `json:"event"`
	Result     string            `json:"result"`
	Name       string            `json:"name"`
	Searchee   CrossSeedSearchee `json:"searchee"`
	InfoHashes []string          `json:"infoHashes"`
	Trackers   []string          `json:"trackers"`
}

// CrossSeedSearchee carries the filesystem path of the matched torrent.
type CrossSeedSearchee struct {
	Path string `json:"path"`
}

// IsTest reports whether the payload is a cross-seed TEST ping.
func (p CrossSeedPayload) IsTest() bool {
	return p.Event == TestEvent || p.Extra.Event == TestEvent
}

// eventKind returns the producer event name used for emoji/color lookup,
// preferring the top-level field over the nested one.
func (p CrossSeedPayload) eventKind() string {
	if p.Event != "" {
		return p.Event
	}
	return p.Extra.Event
}

// subjectName resolves the display subject by precedence: explicit name,
// searchee path, first info-hash, then the Unknown sentinel.
func (p CrossSeedPayload) subjectName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Extra.Name != "":
		return p.Extra.Name
	case p.Extra.Searchee.Path != "":
		return p.Extra.Searchee.Path
	case len(p.Extra.InfoHashes) > 0:
		return p.Extra.InfoHashes[0]
	default:
		return UnknownSubject
	}
}

// NormalizeCrossSeed classifies a cross-seed payload into the canonical event.
// The result defaults to UNKNOWN when extra.result is absent or unrecognized.
func NormalizeCrossSeed(p CrossSeedPayload, correlationID string, now time.Time) NotificationEvent {
	e := NotificationEvent{
		Source:        SourceCrossSeed,
		EventKind:     p.eventKind(),
		Result:        ParseResult(p.Extra.Result),
		SubjectName:   p.subjectName(),
		TrackerList:   p.Extra.Trackers,
		CorrelationID: correlationID,
		CreatedAt:     now,
	}
	e.SummaryText = styleForResult(e.Result).Summary
	resolvePresentation(&e)
	return e
}
