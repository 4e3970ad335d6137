package chat_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/mediabot/internal/chat"
)

func TestAwaiterResolvesMatchingMessage(t *testing.T) {
	a := chat.NewAwaiter()

	go func() {
		for a.Pending() == 0 {
			time.Sleep(time.Millisecond)
		}
		a.Observe(chat.Message{ID: "other", ChatID: "chat-2", Text: "nope"})
		a.Observe(chat.Message{ID: "reply", ChatID: "chat-1", Text: "yes"})
	}()

	msg, err := a.Await(context.Background(), func(m chat.Message) bool {
		return m.ChatID == "chat-1"
	}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "reply", msg.ID)
	assert.Equal(t, 0, a.Pending(), "settled waiter must be deregistered")
}

func TestAwaiterTimesOut(t *testing.T) {
	a := chat.NewAwaiter()

	_, err := a.Await(context.Background(), func(chat.Message) bool { return true }, 20*time.Millisecond)
	require.ErrorIs(t, err, chat.ErrAwaitTimeout)
	assert.Equal(t, 0, a.Pending(), "timed-out waiter must be deregistered")
}

func TestAwaiterContextCancel(t *testing.T) {
	a := chat.NewAwaiter()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for a.Pending() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := a.Await(ctx, func(chat.Message) bool { return true }, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.Pending())
}

func TestAwaiterObserveWithoutWaiters(t *testing.T) {
	a := chat.NewAwaiter()

	assert.False(t, a.Observe(chat.Message{ID: "msg-1", ChatID: "chat-1"}))
}

func TestWaitForStableSettles(t *testing.T) {
	var calls atomic.Int64
	fetch := func(context.Context) (string, error) {
		n := calls.Add(1)
		if n < 3 {
			return fmt.Sprintf("draft %d", n), nil
		}
		return "final answer", nil
	}

	got, err := chat.WaitForStable(context.Background(), fetch, time.Millisecond, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, "final answer", got)
}

func TestWaitForStableGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	fetch := func(context.Context) (string, error) {
		return fmt.Sprintf("draft %d", calls.Add(1)), nil
	}

	got, err := chat.WaitForStable(context.Background(), fetch, time.Millisecond, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "draft 5", got)
	assert.Equal(t, int64(5), calls.Load())
}

func TestWaitForStablePropagatesFetchError(t *testing.T) {
	fetchErr := errors.New("upstream gone")
	fetch := func(context.Context) (string, error) { return "", fetchErr }

	_, err := chat.WaitForStable(context.Background(), fetch, time.Millisecond, 1, 3)
	require.ErrorIs(t, err, fetchErr)
}
