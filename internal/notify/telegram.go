// Package notify sends best-effort operator notifications via the Telegram
// bot API.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIBase is the Telegram bot API host. Overridable for tests.
const DefaultAPIBase = "https://api.telegram.org"

// Notifier posts messages to a Telegram chat. The zero-credential Notifier
// is valid and silently drops every message.
type Notifier struct {
	creds   Credentials
	apiBase string
	client  *http.Client
}

// New creates a Notifier for the given credentials.
func New(creds Credentials) *Notifier {
	return &Notifier{
		creds:   creds,
		apiBase: DefaultAPIBase,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewWithAPIBase creates a Notifier targeting a non-default API host.
func NewWithAPIBase(creds Credentials, apiBase string) *Notifier {
	n := New(creds)
	n.apiBase = strings.TrimRight(apiBase, "/")
	return n
}

// Enabled reports whether this Notifier will actually send anything.
func (n *Notifier) Enabled() bool {
	return n.creds.Valid()
}

// Send posts text to the configured chat via sendMessage. Returns nil
// without a request when credentials are absent.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.Enabled() {
		slog.Debug("telegram credentials not configured, skipping notification")
		return nil
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.creds.Token)
	form := url.Values{
		"chat_id": {n.creds.ChatID},
		"text":    {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	slog.Info("telegram notification sent", "chat_id", n.creds.ChatID)
	return nil
}

// ResetMessage formats the notification text for a completed reset.
func ResetMessage(orderID string) string {
	return fmt.Sprintf("Reset order id `%s`", orderID)
}
