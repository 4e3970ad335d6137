// Package download fetches media bytes with retry, backoff, and size
// enforcement, and provides the shared media validation used by the
// dedup scan.
package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Download defaults.
const (
	// DefaultMaxRetries is the retry ceiling for transient failures.
	DefaultMaxRetries = 3
	// DefaultMaxBytes is the download size ceiling.
	DefaultMaxBytes = 25 * 1024 * 1024
	// DefaultRequestTimeout bounds a single GET.
	DefaultRequestTimeout = 30 * time.Second
	// defaultMimeType is used when the response has no content type.
	defaultMimeType = "application/octet-stream"
	// backoffUnit is the linear backoff step between attempts.
	backoffUnit = time.Second
)

// OversizeError indicates the payload exceeds the size ceiling. It is a
// distinct, non-retryable failure kind.
type OversizeError struct {
	URL   string
	Limit int64
	Size  int64 // Advertised size, 0 when discovered mid-transfer
}

// Error implements the error interface.
func (e *OversizeError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("media too large: %d bytes exceeds limit of %d", e.Size, e.Limit)
	}
	return fmt.Sprintf("media too large: transfer exceeded limit of %d bytes", e.Limit)
}

// IsOversize checks whether an error is an oversize failure.
func IsOversize(err error) bool {
	var oe *OversizeError
	return errors.As(err, &oe)
}

// ErrEmptyBody indicates the response carried no payload.
var ErrEmptyBody = errors.New("empty response body")

// Media is a fetched payload.
type Media struct {
	// Data is the base64-encoded payload bytes.
	Data string
	// MimeType is taken from the response headers.
	MimeType string
}

// Size returns the decoded payload length in bytes.
func (m Media) Size() int {
	return base64.StdEncoding.DecodedLen(len(m.Data))
}

// Config holds downloader tuning.
type Config struct {
	MaxRetries     int
	MaxBytes       int64
	RequestTimeout time.Duration
	Client         *http.Client
	Logger         *slog.Logger

	// sleep is the backoff wait, replaceable in tests.
	sleep func(context.Context, time.Duration) error
}

// Client performs HTTP media downloads.
type Client struct {
	cfg Config
}

// NewClient creates a download client.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepContext
	}
	return &Client{cfg: cfg}
}

// Download fetches the URL, retrying transient failures up to MaxRetries
// with linearly increasing backoff. Oversize failures abort immediately and
// are never retried.
func (c *Client) Download(ctx context.Context, url string) (Media, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		media, err := c.fetch(ctx, url)
		if err == nil {
			return media, nil
		}

		if IsOversize(err) {
			return Media{}, err
		}

		lastErr = err
		c.cfg.Logger.WarnContext(ctx, "Download attempt failed",
			slog.String("url", truncateURL(url)),
			slog.Int("attempt", attempt),
			slog.Any("error", err))

		if attempt < c.cfg.MaxRetries {
			if werr := c.cfg.sleep(ctx, time.Duration(attempt)*backoffUnit); werr != nil {
				return Media{}, fmt.Errorf("download cancelled during backoff: %w", werr)
			}
		}
	}

	return Media{}, fmt.Errorf("download failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// fetch performs a single GET with size enforcement.
func (c *Client) fetch(ctx context.Context, url string) (Media, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Media{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return Media{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Media{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Advertised-size check before reading anything.
	if resp.ContentLength > c.cfg.MaxBytes {
		return Media{}, &OversizeError{URL: url, Limit: c.cfg.MaxBytes, Size: resp.ContentLength}
	}

	// Mid-transfer guard: read one byte past the ceiling to detect
	// payloads whose advertised size lied or was absent.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBytes+1))
	if err != nil {
		return Media{}, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBytes {
		return Media{}, &OversizeError{URL: url, Limit: c.cfg.MaxBytes}
	}
	if len(body) == 0 {
		return Media{}, ErrEmptyBody
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	return Media{
		Data:     base64.StdEncoding.EncodeToString(body),
		MimeType: mimeType,
	}, nil
}

// sleepContext waits for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// truncateURL shortens long URLs for log lines.
func truncateURL(url string) string {
	const maxLen = 120
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen] + "..."
}
