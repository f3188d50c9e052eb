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

// telegramAPIBase is the Bot API endpoint prefix.
const telegramAPIBase = "https://api.telegram.org"

// telegramSendMessage is the sendMessage request body.
type telegramSendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// telegramResponse is the subset of the Bot API envelope we inspect.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// TelegramFallback sends exhausted deliveries through the Telegram Bot API.
type TelegramFallback struct {
	apiBase  string // replaced in tests
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramFallback creates a Telegram fallback channel. The bot token is a
// secret; it is embedded in the request URL and must never be logged.
func NewTelegramFallback(botToken, chatID string, client *http.Client) *TelegramFallback {
	return &TelegramFallback{
		apiBase:  telegramAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   client,
	}
}

// Name returns the channel identifier used in logs.
func (t *TelegramFallback) Name() string {
	return "telegram"
}

// Send posts the event once via sendMessage. The Bot API wraps errors in a
// 200-or-4xx JSON envelope with ok=false, so both are checked.
func (t *TelegramFallback) Send(ctx context.Context, e *events.NotificationEvent) error {
	text := fmt.Sprintf("%s %s\n\nTorrent: %s\nTrackers: %s\n\n%s",
		e.Emoji, e.Title(), e.SubjectName, e.TrackerDisplay(), stripMarkdownBold(e.SummaryText))

	body, err := json.Marshal(telegramSendMessage{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram fallback: encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram fallback: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram fallback: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	var envelope telegramResponse
	if jsonErr := json.Unmarshal(respBody, &envelope); jsonErr == nil && !envelope.OK && envelope.Description != "" {
		return fmt.Errorf("telegram fallback: API error: %s", envelope.Description)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram fallback: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// stripMarkdownBold drops the double-asterisk markers that Discord-flavored
// summaries carry. Telegram's default parse mode renders them literally.
func stripMarkdownBold(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
