package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// WebhookChannel posts alerts as JSON. The body carries a "text" field so
// Slack and Discord incoming webhooks render it directly.
type WebhookChannel struct {
	url     string
	headers map[string]string
	client  *http.Client
}

type webhookPayload struct {
	Text    string `json:"text"`
	Content string `json:"content"`
	Alert   Alert  `json:"alert"`
}

// NewWebhookChannel creates a webhook channel. client may be nil.
func NewWebhookChannel(url string, headers map[string]string, client *http.Client) *WebhookChannel {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookChannel{url: url, headers: headers, client: client}
}

func (w *WebhookChannel) Name() string {
	return "webhook"
}

func (w *WebhookChannel) Send(ctx context.Context, a Alert) error {
	text := a.Text()
	body, err := json.Marshal(webhookPayload{Text: text, Content: text, Alert: a})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
