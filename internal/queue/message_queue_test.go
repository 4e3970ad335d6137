package queue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/mediabot/internal/chat"
)

func TestMessageQueueFIFOOrder(t *testing.T) {
	q := NewMessageQueue()

	for i := 0; i < 10; i++ {
		q.Enqueue(chat.Message{ID: fmt.Sprintf("msg-%d", i), ChatID: "chat-1"})
	}
	require.Equal(t, 10, q.Len())

	for i := 0; i < 10; i++ {
		entry := q.Dequeue()
		require.NotNil(t, entry)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), entry.Message.ID)
	}
	assert.Nil(t, q.Dequeue())
}

func TestMessageQueueEnqueueSetsQueuedState(t *testing.T) {
	q := NewMessageQueue()

	entry := q.Enqueue(chat.Message{ID: "msg-1", ChatID: "chat-1"})

	assert.Equal(t, StateQueued, entry.GetState())

	history := entry.History()
	require.Len(t, history, 1)
	assert.Equal(t, StateReceived, history[0].From)
	assert.Equal(t, StateQueued, history[0].To)
}

func TestMessageQueueDequeueEmpty(t *testing.T) {
	q := NewMessageQueue()

	assert.Nil(t, q.Dequeue())
	assert.Equal(t, 0, q.Len())
}
