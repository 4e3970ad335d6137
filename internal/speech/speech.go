// Package speech provides the text-to-speech backend for the say command.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxhall/mediabot/internal/chat"
)

// Defaults.
const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultMimeType       = "audio/ogg"
)

// Config holds the speech backend settings.
type Config struct {
	// URL is the synthesis endpoint. A POST with text and voice returns
	// raw audio bytes.
	URL string

	// Voice selects the synthesis voice, backend-specific.
	Voice string

	Client *http.Client
}

// Client renders text as audio through an HTTP synthesis endpoint.
type Client struct {
	cfg Config
}

// NewClient creates a speech client.
func NewClient(cfg Config) *Client {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &Client{cfg: cfg}
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Synthesize renders text as an audio attachment.
func (c *Client) Synthesize(ctx context.Context, text string) (chat.Attachment, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: c.cfg.Voice})
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("encoding synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("creating synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("querying speech backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return chat.Attachment{}, fmt.Errorf("speech backend returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("reading synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return chat.Attachment{}, fmt.Errorf("speech backend returned empty audio")
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = DefaultMimeType
	}

	return chat.Attachment{
		Data:     base64.StdEncoding.EncodeToString(audio),
		MimeType: mime,
	}, nil
}
