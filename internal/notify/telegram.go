// Package notify delivers rendered text messages to an external chat
// channel. Delivery is fire-and-forget: callers log failures and move on,
// a notification must never fail a sync run.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
)

// Notifier sends a text message to a chat channel.
type Notifier interface {
	Send(ctx context.Context, chatID, text string) error
}

// TelegramNotifier implements Notifier against the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	baseURL  string
	http     *http.Client
}

// NewTelegramNotifier creates a TelegramNotifier. baseURL is overridable for
// tests and defaults to the public Bot API.
func NewTelegramNotifier(botToken, baseURL string) *TelegramNotifier {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message. Text uses Telegram's Markdown subset (bold via
// asterisks).
func (n *TelegramNotifier) Send(ctx context.Context, chatID, text string) error {
	if n.botToken == "" {
		return fmt.Errorf("telegram bot token is not configured")
	}
	if chatID == "" {
		return fmt.Errorf("chat id is empty")
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperrors.NewProviderError("telegram_send", resp.StatusCode, string(body))
	}
	return nil
}

// NewTicketText renders the notification for a freshly created ticket.
func NewTicketText(number, subject, senderEmail string) string {
	return fmt.Sprintf("*New ticket %s*\n%s\nfrom %s", number, subject, senderEmail)
}

// EventReminderText renders the notification for an event starting soon.
func EventReminderText(subject, location string, minutesUntil int) string {
	text := fmt.Sprintf("*%s* starts in %d minutes", subject, minutesUntil)
	if location != "" {
		text += "\n" + location
	}
	return text
}
