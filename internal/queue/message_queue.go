package queue

import (
	"container/list"
	"sync"

	"github.com/voxhall/mediabot/internal/chat"
)

// MessageQueue is the in-memory FIFO of inbound messages. Enqueue never
// blocks and never rejects; callers fire and forget. There is exactly one
// consumer, so strict per-queue FIFO ordering holds: entries are never
// reordered or duplicated, and a dequeued entry never re-enters the queue.
type MessageQueue struct {
	entries *list.List
	mu      sync.Mutex
}

// NewMessageQueue creates an empty message queue.
func NewMessageQueue() *MessageQueue {
	return &MessageQueue{
		entries: list.New(),
	}
}

// Enqueue appends a message to the tail of the queue.
func (q *MessageQueue) Enqueue(msg chat.Message) *Entry {
	entry := NewEntry(msg)
	entry.setState(StateQueued, "enqueued")

	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries.PushBack(entry)
	return entry
}

// Dequeue removes and returns the head entry, or nil if the queue is empty.
func (q *MessageQueue) Dequeue() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.entries.Front()
	if front == nil {
		return nil
	}

	entry, ok := front.Value.(*Entry)
	if !ok {
		q.entries.Remove(front)
		return nil
	}
	q.entries.Remove(front)
	return entry
}

// Len returns the number of waiting entries.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}
