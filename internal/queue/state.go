package queue

import (
	"sync"
	"time"

	"github.com/voxhall/mediabot/internal/chat"
)

// State represents where a message is in its processing lifecycle.
type State string

const (
	// StateReceived indicates the message has been handed to the pipeline.
	StateReceived State = "received"

	// StateQueued indicates the message is waiting in the FIFO queue.
	StateQueued State = "queued"

	// StateRateChecked indicates the rate limiter has been consulted.
	StateRateChecked State = "rate_checked"

	// StateLimited indicates the message was throttled. Terminal.
	StateLimited State = "limited"

	// StateRouted indicates the message was dispatched to a handler.
	StateRouted State = "routed"

	// StateCommandExecuted indicates a command handler ran.
	StateCommandExecuted State = "command_executed"

	// StateMediaDelivered indicates a media transaction ran.
	StateMediaDelivered State = "media_delivered"

	// StateAIResponded indicates the AI backend produced the reply.
	StateAIResponded State = "ai_responded"

	// StateDropped indicates the message was skipped (no chat context).
	StateDropped State = "dropped"

	// StateCompleted indicates processing finished. Terminal.
	StateCompleted State = "completed"
)

// StateTransition records a single state change in the message lifecycle.
type StateTransition struct {
	From      State
	To        State
	Timestamp time.Time
	Reason    string
}

// Entry wraps an inbound message while it moves through the queue.
// The message itself is immutable once enqueued; only lifecycle fields change.
type Entry struct {
	Message    chat.Message
	EnqueuedAt time.Time

	state   State
	history []StateTransition
	err     error
	mu      sync.RWMutex
}

// NewEntry wraps an inbound message for queueing.
func NewEntry(msg chat.Message) *Entry {
	return &Entry{
		Message:    msg,
		EnqueuedAt: time.Now(),
		state:      StateReceived,
	}
}

// GetState safely reads the entry state.
func (e *Entry) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// setState updates the state and records the transition.
func (e *Entry) setState(to State, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, StateTransition{
		From:      e.state,
		To:        to,
		Timestamp: time.Now(),
		Reason:    reason,
	})
	e.state = to
}

// SetError safely records a processing error.
func (e *Entry) SetError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Err safely reads the recorded processing error.
func (e *Entry) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// History returns a copy of the state history.
func (e *Entry) History() []StateTransition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	history := make([]StateTransition, len(e.history))
	copy(history, e.history)
	return history
}
