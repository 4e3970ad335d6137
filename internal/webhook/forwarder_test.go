package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/mediabot/internal/chat"
)

func TestForwardPostsPayload(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := NewForwarder(srv.URL, srv.Client())
	received := time.Now().Truncate(time.Second)
	err := f.Forward(context.Background(), chat.Message{
		ID:         "msg-1",
		ChatID:     "chat-1",
		Sender:     "alice",
		Text:       "hello",
		HasMedia:   true,
		ReceivedAt: received,
	})
	require.NoError(t, err)

	assert.Equal(t, "msg-1", got.MessageID)
	assert.Equal(t, "chat-1", got.ChatID)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, "hello", got.Text)
	assert.True(t, got.HasMedia)
	assert.True(t, got.ReceivedAt.Equal(received))
}

func TestForwardErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewForwarder(srv.URL, srv.Client())
	err := f.Forward(context.Background(), chat.Message{ID: "msg-1", ChatID: "chat-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestForwardUnreachable(t *testing.T) {
	f := NewForwarder("http://127.0.0.1:1/webhook", nil)
	err := f.Forward(context.Background(), chat.Message{ID: "msg-1", ChatID: "chat-1"})
	assert.Error(t, err)
}
