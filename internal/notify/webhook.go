// File: internal/notify/webhook.go
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xkilldash9x/keepalive-cli/internal/network"
)

// WebhookNotifier posts notifications as JSON to a URL.
type WebhookNotifier struct {
	url    string
	client *network.Client
	now    func() time.Time
}

// WebhookPayload is the JSON body sent to the webhook.
type WebhookPayload struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Type    string    `json:"type"`
	RunID   string    `json:"run_id,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(url string, client *network.Client) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: client, now: time.Now}
}

// Send posts n. Any non-2xx status is an error.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(WebhookPayload{
		Title:   n.Title,
		Message: n.Message,
		Type:    n.Type.String(),
		RunID:   n.RunID,
		SentAt:  w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("webhook: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
