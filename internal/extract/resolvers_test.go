package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
}

func TestOpenGraphResolverSingleImage(t *testing.T) {
	srv := servePage(t, `<html><head>
		<meta property="og:image" content="https://cdn.example/a.jpg">
		<meta property="og:title" content="a post">
	</head><body></body></html>`)
	defer srv.Close()

	r := NewImageResolver(srv.Client())
	items, err := r.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn.example/a.jpg", items[0].URL)
}

func TestOpenGraphResolverGallery(t *testing.T) {
	srv := servePage(t, `<html><head>
		<meta property="og:image" content="https://cdn.example/1.jpg">
		<meta property="og:image" content="https://cdn.example/2.jpg">
		<meta property="og:image" content="https://cdn.example/1.jpg">
		<meta property="og:image" content="https://cdn.example/3.jpg">
	</head><body></body></html>`)
	defer srv.Close()

	r := NewImageResolver(srv.Client())
	items, err := r.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)

	// Document order, duplicates dropped.
	require.Len(t, items, 3)
	assert.Equal(t, "https://cdn.example/1.jpg", items[0].URL)
	assert.Equal(t, "https://cdn.example/2.jpg", items[1].URL)
	assert.Equal(t, "https://cdn.example/3.jpg", items[2].URL)
}

func TestOpenGraphResolverPreferenceOrder(t *testing.T) {
	srv := servePage(t, `<html><head>
		<meta property="og:video" content="https://cdn.example/plain.mp4">
		<meta property="og:video:secure_url" content="https://cdn.example/secure.mp4">
	</head><body></body></html>`)
	defer srv.Close()

	r := NewVideoResolver(srv.Client())
	items, err := r.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)

	// The secure URL takes precedence; og:video is only a fallback.
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn.example/secure.mp4", items[0].URL)
}

func TestOpenGraphResolverNoTags(t *testing.T) {
	srv := servePage(t, `<html><head><title>nothing here</title></head><body></body></html>`)
	defer srv.Close()

	r := NewImageResolver(srv.Client())
	items, err := r.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, items, "the service layer turns an empty result into an error")
}

func TestOpenGraphResolverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := NewImageResolver(srv.Client())
	_, err := r.Resolve(context.Background(), srv.URL)
	assert.Error(t, err)
}
