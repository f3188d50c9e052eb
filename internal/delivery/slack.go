package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"seedrelay/internal/events"
)

// slackMessage is the incoming-webhook payload shape. A single attachment
// carries the event color bar alongside the rendered text.
type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string `json:"color,omitempty"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Footer string `json:"footer,omitempty"`
}

// SlackFallback posts exhausted deliveries to a Slack incoming webhook.
type SlackFallback struct {
	webhookURL string
	client     *http.Client
}

// NewSlackFallback creates a Slack fallback channel. The webhook URL is a
// secret and must never appear in logs; only the channel name is logged.
func NewSlackFallback(webhookURL string, client *http.Client) *SlackFallback {
	return &SlackFallback{
		webhookURL: webhookURL,
		client:     client,
	}
}

// Name returns the channel identifier used in logs.
func (s *SlackFallback) Name() string {
	return "slack"
}

// Send posts the event once. Slack incoming webhooks answer plain-text "ok"
// on success and an error token on HTTP 200 soft failures, so the body is
// checked as well as the status.
func (s *SlackFallback) Send(ctx context.Context, e *events.NotificationEvent) error {
	title := fmt.Sprintf("%s %s", e.Emoji, e.Title())
	msg := slackMessage{
		Text: title,
		Attachments: []slackAttachment{
			{
				Color:  e.ColorCode,
				Title:  title,
				Text:   fmt.Sprintf("*Torrent:* %s\n*Trackers:* %s\n\n%s", e.SubjectName, e.TrackerDisplay(), e.SummaryText),
				Footer: "seedrelay",
			},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack fallback: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack fallback: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack fallback: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack fallback: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if trimmed := strings.TrimSpace(string(respBody)); trimmed != "" && trimmed != "ok" {
		return fmt.Errorf("slack fallback: API error: %s", trimmed)
	}
	return nil
}
