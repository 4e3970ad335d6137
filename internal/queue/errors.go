package queue

import (
	"errors"
)

// Common queue errors.
var (
	// ErrRateLimited indicates the chat exhausted its rate window.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoChatContext indicates the message lacks a resolvable chat.
	ErrNoChatContext = errors.New("message has no resolvable chat context")

	// ErrQueueStopped indicates the processor has been stopped.
	ErrQueueStopped = errors.New("queue stopped")
)
