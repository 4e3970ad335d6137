// Package search provides the image search backend for the img command.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultRequestTimeout bounds a single search request.
const DefaultRequestTimeout = 15 * time.Second

// Config holds the search backend settings.
type Config struct {
	// URL is the search endpoint. A GET with a q parameter must return a
	// JSON array of image URLs.
	URL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	Client *http.Client
	Logger *slog.Logger
}

// Client queries an HTTP image search endpoint.
type Client struct {
	cfg Config
}

// NewClient creates a search client.
func NewClient(cfg Config) *Client {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg}
}

// Search returns candidate image URLs for the query, in ranking order.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	endpoint := fmt.Sprintf("%s?q=%s", c.cfg.URL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying search backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}

	var results []string
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding search results: %w", err)
	}

	c.cfg.Logger.DebugContext(ctx, "Search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}
