// Package webhook forwards inbound messages to an external HTTP endpoint.
// Forwarding is best-effort: failures are reported to the caller for
// logging, never to the user.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voxhall/mediabot/internal/chat"
)

// defaultTimeout bounds a single forward POST.
const defaultTimeout = 10 * time.Second

// payload is the JSON body posted to the webhook.
type payload struct {
	MessageID  string    `json:"message_id"`
	ChatID     string    `json:"chat_id"`
	Sender     string    `json:"sender"`
	Text       string    `json:"text"`
	HasMedia   bool      `json:"has_media"`
	ReceivedAt time.Time `json:"received_at"`
}

// Forwarder posts inbound messages to a configured URL.
type Forwarder struct {
	url    string
	client *http.Client
}

// NewForwarder creates a forwarder for the given URL.
func NewForwarder(url string, client *http.Client) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Forwarder{url: url, client: client}
}

// Forward posts the message as JSON.
func (f *Forwarder) Forward(ctx context.Context, msg chat.Message) error {
	body, err := json.Marshal(payload{
		MessageID:  msg.ID,
		ChatID:     msg.ChatID,
		Sender:     msg.Sender,
		Text:       msg.Text,
		HasMedia:   msg.HasMedia,
		ReceivedAt: msg.ReceivedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
