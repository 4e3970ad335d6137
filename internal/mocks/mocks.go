// Package mocks provides shared test doubles for the messenger, resolvers,
// and backends. Production code never imports this package.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxhall/mediabot/internal/chat"
	"github.com/voxhall/mediabot/internal/download"
	"github.com/voxhall/mediabot/internal/extract"
)

// SentReply records one text reply.
type SentReply struct {
	ChatID string
	Text   string
}

// SentMedia records one media reply.
type SentMedia struct {
	ChatID     string
	Attachment chat.Attachment
}

// PresenceCall records one presence state change.
type PresenceCall struct {
	ChatID string
	State  chat.PresenceState
	Clear  bool
}

// MockMessenger implements chat.Messenger and records everything sent.
type MockMessenger struct {
	mu            sync.Mutex
	replies       []SentReply
	media         []SentMedia
	presenceCalls []PresenceCall
	incoming      chan chat.Message

	// ReplyErr, when set, is returned from Reply.
	ReplyErr error
	// ReplyMediaErr, when set, is returned from ReplyMedia.
	ReplyMediaErr error
}

// NewMockMessenger creates a messenger double with a buffered inbound channel.
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{
		incoming: make(chan chat.Message, 64),
	}
}

// Reply implements chat.Messenger.
func (m *MockMessenger) Reply(_ context.Context, chatID, text string) error {
	if m.ReplyErr != nil {
		return m.ReplyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, SentReply{ChatID: chatID, Text: text})
	return nil
}

// ReplyMedia implements chat.Messenger.
func (m *MockMessenger) ReplyMedia(_ context.Context, chatID string, att chat.Attachment) error {
	if m.ReplyMediaErr != nil {
		return m.ReplyMediaErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media = append(m.media, SentMedia{ChatID: chatID, Attachment: att})
	return nil
}

// SendPresence implements chat.Messenger.
func (m *MockMessenger) SendPresence(_ context.Context, chatID string, state chat.PresenceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presenceCalls = append(m.presenceCalls, PresenceCall{ChatID: chatID, State: state})
	return nil
}

// ClearPresence implements chat.Messenger.
func (m *MockMessenger) ClearPresence(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presenceCalls = append(m.presenceCalls, PresenceCall{ChatID: chatID, Clear: true})
	return nil
}

// Subscribe implements chat.Messenger.
func (m *MockMessenger) Subscribe(ctx context.Context) (<-chan chat.Message, error) {
	out := make(chan chat.Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-m.incoming:
				if !ok {
					return
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

// Deliver feeds a message to subscribers.
func (m *MockMessenger) Deliver(msg chat.Message) {
	m.incoming <- msg
}

// Replies returns a copy of recorded text replies.
func (m *MockMessenger) Replies() []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentReply, len(m.replies))
	copy(out, m.replies)
	return out
}

// Media returns a copy of recorded media replies.
func (m *MockMessenger) Media() []SentMedia {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMedia, len(m.media))
	copy(out, m.media)
	return out
}

// PresenceCalls returns a copy of recorded presence changes.
func (m *MockMessenger) PresenceCalls() []PresenceCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PresenceCall, len(m.presenceCalls))
	copy(out, m.presenceCalls)
	return out
}

// MockDownloader implements the download contract with scripted payloads.
type MockDownloader struct {
	mu sync.Mutex
	// Payloads maps URL to the media returned for it.
	Payloads map[string]download.Media
	// Fail marks URLs whose download always fails.
	Fail  map[string]bool
	calls []string
}

// NewMockDownloader creates an empty scripted downloader.
func NewMockDownloader() *MockDownloader {
	return &MockDownloader{
		Payloads: make(map[string]download.Media),
		Fail:     make(map[string]bool),
	}
}

// Download implements the downloader contract.
func (d *MockDownloader) Download(_ context.Context, url string) (download.Media, error) {
	d.mu.Lock()
	d.calls = append(d.calls, url)
	d.mu.Unlock()

	if d.Fail[url] {
		return download.Media{}, fmt.Errorf("scripted download failure for %s", url)
	}
	if media, ok := d.Payloads[url]; ok {
		return media, nil
	}
	return download.Media{Data: "ZGF0YQ==", MimeType: "application/octet-stream"}, nil
}

// Calls returns the URLs downloaded so far.
func (d *MockDownloader) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

// MockResolver implements extract.Resolver with scripted results.
type MockResolver struct {
	mu sync.Mutex
	// Items are returned from every Resolve call.
	Items []extract.Resolved
	// Err, when set, fails every Resolve call.
	Err   error
	calls int
}

// Resolve implements extract.Resolver.
func (r *MockResolver) Resolve(_ context.Context, _ string) ([]extract.Resolved, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Items, nil
}

// Calls returns how many times Resolve ran.
func (r *MockResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// MockValidator implements download.Validator with scripted classifications.
type MockValidator struct {
	mu sync.Mutex
	// Results maps URL to its classification. Unlisted URLs are Valid.
	Results map[string]download.ValidationResult
	calls   map[string]int
}

// NewMockValidator creates an empty scripted validator.
func NewMockValidator() *MockValidator {
	return &MockValidator{
		Results: make(map[string]download.ValidationResult),
		calls:   make(map[string]int),
	}
}

// Validate implements download.Validator.
func (v *MockValidator) Validate(_ context.Context, url string, _ string) download.ValidationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls[url]++
	if result, ok := v.Results[url]; ok {
		return result
	}
	return download.Valid
}

// CallCount returns how many times a URL was validated.
func (v *MockValidator) CallCount(url string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[url]
}

// MockSearcher implements the image search contract.
type MockSearcher struct {
	// Results are returned for every query.
	Results []string
	// Err, when set, fails every search.
	Err error
}

// Search implements the searcher contract.
func (s *MockSearcher) Search(_ context.Context, _ string) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Results, nil
}

// MockResponder implements the AI responder contract.
type MockResponder struct {
	// Response is returned for every message.
	Response string
	// Err, when set, fails every call.
	Err   error
	mu    sync.Mutex
	calls int
}

// Respond implements the responder contract.
func (r *MockResponder) Respond(_ context.Context, _ chat.Message) (string, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	return r.Response, nil
}

// Calls returns how many times Respond ran.
func (r *MockResponder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
