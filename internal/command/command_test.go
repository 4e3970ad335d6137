package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/mediabot/internal/chat"
)

type stubPresence struct {
	mu       sync.Mutex
	acquired []chat.PresenceState
	released int
}

func (s *stubPresence) Start(_ context.Context, _ string, state chat.PresenceState) error {
	return nil
}

func (s *stubPresence) Stop(string) {}

func (s *stubPresence) StopAll() {}

func (s *stubPresence) Acquire(_ context.Context, _ string, state chat.PresenceState) func() {
	s.mu.Lock()
	s.acquired = append(s.acquired, state)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
	}
}

func (s *stubPresence) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.acquired), s.released
}

func TestDispatchIgnoresNonCommands(t *testing.T) {
	r := NewRegistry("!", &stubPresence{}, nil)
	r.Register(Spec{Name: "ping", Handler: func(context.Context, chat.Message, []string) error {
		t.Fatal("handler must not run")
		return nil
	}})

	for _, text := range []string{"", "hello there", "ping", "!pong", "! ping"} {
		handled, err := r.Dispatch(context.Background(), chat.Message{ChatID: "chat-1", Text: text})
		require.NoError(t, err, "text %q", text)
		assert.False(t, handled, "text %q", text)
	}
}

func TestDispatchRunsHandlerWithArgs(t *testing.T) {
	var gotArgs []string
	r := NewRegistry("!", &stubPresence{}, nil)
	r.Register(Spec{Name: "echo", Handler: func(_ context.Context, _ chat.Message, args []string) error {
		gotArgs = args
		return nil
	}})

	handled, err := r.Dispatch(context.Background(), chat.Message{ChatID: "chat-1", Text: "!echo one two"})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"one", "two"}, gotArgs)
}

func TestDispatchCustomPrefix(t *testing.T) {
	ran := false
	r := NewRegistry("/", &stubPresence{}, nil)
	r.Register(Spec{Name: "ping", Handler: func(context.Context, chat.Message, []string) error {
		ran = true
		return nil
	}})

	handled, err := r.Dispatch(context.Background(), chat.Message{ChatID: "chat-1", Text: "/ping"})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, ran)

	handled, _ = r.Dispatch(context.Background(), chat.Message{ChatID: "chat-1", Text: "!ping"})
	assert.False(t, handled)
}

func TestDispatchSetsPresenceWhenReplyExpected(t *testing.T) {
	presence := &stubPresence{}
	r := NewRegistry("!", presence, nil)
	r.Register(Spec{
		Name:     "talk",
		Presence: chat.PresenceRecording,
		ExpectsReply: func(_ chat.Message, args []string) bool {
			return len(args) > 0
		},
		Handler: func(context.Context, chat.Message, []string) error { return nil },
	})

	// No args: no reply expected, no indicator.
	_, err := r.Dispatch(context.Background(), chat.Message{ChatID: "chat-1", Text: "!talk"})
	require.NoError(t, err)
	acquired, released := presence.counts()
	assert.Equal(t, 0, acquired)
	assert.Equal(t, 0, released)

	// With args: indicator set and released.
	_, err = r.Dispatch(context.Background(), chat.Message{ChatID: "chat-1", Text: "!talk hello"})
	require.NoError(t, err)
	acquired, released = presence.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
	assert.Equal(t, chat.PresenceRecording, presence.acquired[0])
}

func TestDispatchDefaultsToTypingPresence(t *testing.T) {
	presence := &stubPresence{}
	r := NewRegistry("!", presence, nil)
	r.Register(Spec{
		Name:    "ping",
		Handler: func(context.Context, chat.Message, []string) error { return nil },
	})

	_, err := r.Dispatch(context.Background(), chat.Message{ChatID: "chat-1", Text: "!ping"})
	require.NoError(t, err)

	require.Len(t, presence.acquired, 1)
	assert.Equal(t, chat.PresenceTyping, presence.acquired[0])
}

func TestDispatchReleasesPresenceOnHandlerError(t *testing.T) {
	presence := &stubPresence{}
	r := NewRegistry("!", presence, nil)
	r.Register(Spec{
		Name: "boom",
		Handler: func(context.Context, chat.Message, []string) error {
			return errors.New("handler failed")
		},
	})

	handled, err := r.Dispatch(context.Background(), chat.Message{ChatID: "chat-1", Text: "!boom"})
	assert.True(t, handled)
	assert.Error(t, err)

	_, released := presence.counts()
	assert.Equal(t, 1, released, "indicator must be cleared on the error path")
}

func TestDispatchReleasesPresenceOnHandlerPanic(t *testing.T) {
	presence := &stubPresence{}
	r := NewRegistry("!", presence, nil)
	r.Register(Spec{
		Name: "panic",
		Handler: func(context.Context, chat.Message, []string) error {
			panic("handler exploded")
		},
	})

	assert.Panics(t, func() {
		_, _ = r.Dispatch(context.Background(), chat.Message{ChatID: "chat-1", Text: "!panic"})
	})

	_, released := presence.counts()
	assert.Equal(t, 1, released, "indicator must be cleared even when the handler panics")
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry("!", &stubPresence{}, nil)
	r.Register(Spec{Name: "a", Handler: func(context.Context, chat.Message, []string) error { return nil }})
	r.Register(Spec{Name: "b", Handler: func(context.Context, chat.Message, []string) error { return nil }})

	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
}
