// Package chat provides the messaging transport contract plus presence
// and reply-await helpers used by the message processor.
package chat

import (
	"context"
	"time"
)

// PresenceState is the indicator shown to a chat while the bot works.
type PresenceState string

const (
	// PresenceTyping indicates a text reply is being prepared.
	PresenceTyping PresenceState = "typing"

	// PresenceRecording indicates an audio reply is being prepared.
	PresenceRecording PresenceState = "recording"
)

// Attachment is an outbound media payload.
type Attachment struct {
	// Data is the base64-encoded payload.
	Data string

	// MimeType is the payload content type.
	MimeType string

	// Caption is optional text sent alongside the media.
	Caption string
}

// Message represents a message received from a user. Immutable once enqueued.
type Message struct {
	ID         string    // Unique message identifier
	ChatID     string    // Originating chat identifier
	Sender     string    // Sender identifier
	Text       string    // Message content
	HasMedia   bool      // Whether the message itself carries media
	QuotedID   string    // Identifier of a quoted message, if any
	QuotedText string    // Body of the quoted message, if any
	ReceivedAt time.Time // When the message was received
}

// HasChat reports whether the message carries a resolvable chat context.
func (m Message) HasChat() bool {
	return m.ChatID != ""
}

// Messenger abstracts the chat transport. Implementations must be safe for
// concurrent use.
type Messenger interface {
	// Reply sends a text reply to the chat.
	Reply(ctx context.Context, chatID string, text string) error

	// ReplyMedia sends a media reply to the chat.
	ReplyMedia(ctx context.Context, chatID string, att Attachment) error

	// SendPresence sets the typing/recording indicator for a chat.
	SendPresence(ctx context.Context, chatID string, state PresenceState) error

	// ClearPresence removes any active indicator for a chat.
	ClearPresence(ctx context.Context, chatID string) error

	// Subscribe returns a channel of incoming messages.
	// The channel is closed when the context is cancelled.
	Subscribe(ctx context.Context) (<-chan Message, error)
}
