package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	audio := []byte("fake ogg bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Text)
		assert.Equal(t, "calm", req.Voice)

		w.Header().Set("Content-Type", "audio/opus")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Voice: "calm", Client: srv.Client()})
	att, err := c.Synthesize(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, base64.StdEncoding.EncodeToString(audio), att.Data)
	assert.Equal(t, "audio/opus", att.MimeType)
}

func TestSynthesizeDefaultsMimeType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0x4f, 0x67, 0x67}) // raw bytes, no declared type
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Client: srv.Client()})
	att, err := c.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, DefaultMimeType, att.MimeType)
}

func TestSynthesizeEmptyAudioFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Client: srv.Client()})
	_, err := c.Synthesize(context.Background(), "hi")
	assert.Error(t, err)
}

func TestSynthesizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Client: srv.Client()})
	_, err := c.Synthesize(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
