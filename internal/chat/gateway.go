package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Gateway defaults.
const (
	// receivePollTimeout is the long-poll duration requested from the
	// gateway's receive endpoint.
	receivePollTimeout = 30 * time.Second

	// receiveRetryDelay spaces out reconnects after a failed poll.
	receiveRetryDelay = 2 * time.Second
)

// GatewayMessenger implements Messenger against an HTTP chat gateway. The
// gateway exposes send, presence, and long-poll receive endpoints and proxies
// them to the underlying chat platform.
type GatewayMessenger struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewGatewayMessenger creates a messenger over the gateway at baseURL.
func NewGatewayMessenger(baseURL, token string, client *http.Client, logger *slog.Logger) *GatewayMessenger {
	if client == nil {
		client = &http.Client{Timeout: receivePollTimeout + 15*time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayMessenger{
		baseURL: baseURL,
		token:   token,
		client:  client,
		logger:  logger,
	}
}

type sendRequest struct {
	ChatID   string `json:"chat_id"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type presenceRequest struct {
	ChatID string `json:"chat_id"`
	State  string `json:"state,omitempty"`
	Clear  bool   `json:"clear,omitempty"`
}

type inboundMessage struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	Sender     string    `json:"sender"`
	Text       string    `json:"text"`
	HasMedia   bool      `json:"has_media"`
	QuotedID   string    `json:"quoted_id"`
	QuotedText string    `json:"quoted_text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Reply implements Messenger.
func (g *GatewayMessenger) Reply(ctx context.Context, chatID, text string) error {
	return g.post(ctx, "/v1/send", sendRequest{ChatID: chatID, Text: text})
}

// ReplyMedia implements Messenger.
func (g *GatewayMessenger) ReplyMedia(ctx context.Context, chatID string, att Attachment) error {
	return g.post(ctx, "/v1/send", sendRequest{
		ChatID:   chatID,
		Text:     att.Caption,
		Data:     att.Data,
		MimeType: att.MimeType,
	})
}

// SendPresence implements Messenger.
func (g *GatewayMessenger) SendPresence(ctx context.Context, chatID string, state PresenceState) error {
	return g.post(ctx, "/v1/presence", presenceRequest{ChatID: chatID, State: string(state)})
}

// ClearPresence implements Messenger.
func (g *GatewayMessenger) ClearPresence(ctx context.Context, chatID string) error {
	return g.post(ctx, "/v1/presence", presenceRequest{ChatID: chatID, Clear: true})
}

// Subscribe implements Messenger. It long-polls the gateway's receive
// endpoint and keeps polling through transient errors until the context is
// cancelled.
func (g *GatewayMessenger) Subscribe(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message, 16)

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := g.receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				g.logger.ErrorContext(ctx, "Gateway receive failed, retrying",
					slog.Any("error", err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(receiveRetryDelay):
				}
				continue
			}

			for _, in := range batch {
				msg := Message{
					ID:         in.ID,
					ChatID:     in.ChatID,
					Sender:     in.Sender,
					Text:       in.Text,
					HasMedia:   in.HasMedia,
					QuotedID:   in.QuotedID,
					QuotedText: in.QuotedText,
					ReceivedAt: in.ReceivedAt,
				}
				if msg.ReceivedAt.IsZero() {
					msg.ReceivedAt = time.Now()
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (g *GatewayMessenger) receive(ctx context.Context) ([]inboundMessage, error) {
	url := fmt.Sprintf("%s/v1/receive?timeout=%d", g.baseURL, int(receivePollTimeout.Seconds()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating receive request: %w", err)
	}
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("gateway receive returned status %d", resp.StatusCode)
	}

	var batch []inboundMessage
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decoding receive batch: %w", err)
	}
	return batch, nil
}

func (g *GatewayMessenger) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to gateway: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

func (g *GatewayMessenger) authorize(req *http.Request) {
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}
