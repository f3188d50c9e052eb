package delivery

import (
	"fmt"

	"seedrelay/internal/events"
)

// ApprisePayload is the JSON body posted to the Apprise relay endpoint.
// ThreadID is a passthrough hint for Discord forum channels; Apprise ignores
// unknown fields, so it is omitted when absent rather than sent empty.
type ApprisePayload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Icon     string `json:"icon,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}

// BuildApprisePayload renders the canonical event into the relay payload.
// The body layout (torrent line, tracker line, blank line, status text) is
// what downstream notification rules match against.
func BuildApprisePayload(e *events.NotificationEvent, iconURL string) ApprisePayload {
	return ApprisePayload{
		Title:    fmt.Sprintf("%s %s", e.Emoji, e.Title()),
		Body:     fmt.Sprintf("**Torrent:** %s\n**Trackers:** %s\n\n%s", e.SubjectName, e.TrackerDisplay(), e.SummaryText),
		Icon:     iconURL,
		ThreadID: e.ThreadID,
	}
}
