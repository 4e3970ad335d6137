// Package ai adapts an OpenAI-compatible chat-completion backend to the
// processor's Responder contract. The backend is an opaque collaborator:
// one request, one response, no local conversation state.
package ai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxhall/mediabot/internal/chat"
)

// defaultRequestTimeout bounds a single completion call.
const defaultRequestTimeout = 60 * time.Second

// Config holds responder settings.
type Config struct {
	APIKey         string
	BaseURL        string // Optional OpenAI-compatible endpoint override
	Model          string
	SystemPrompt   string
	RequestTimeout time.Duration
}

// Client is an OpenAI-compatible responder.
type Client struct {
	client  *openai.Client
	model   string
	system  string
	timeout time.Duration
}

// NewClient creates a responder client.
func NewClient(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	return &Client{
		client:  openai.NewClientWithConfig(config),
		model:   cfg.Model,
		system:  cfg.SystemPrompt,
		timeout: cfg.RequestTimeout,
	}
}

// Respond produces a reply for an inbound message.
func (c *Client) Respond(ctx context.Context, msg chat.Message) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 3)
	if c.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.system,
		})
	}
	if msg.QuotedText != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf("(quoting an earlier message: %s)", msg.QuotedText),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: msg.Text,
	})

	resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}
