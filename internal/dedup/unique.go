package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxhall/mediabot/internal/download"
)

// Unique-selection defaults.
const (
	// validationRetries is how many times a failed candidate is rechecked.
	validationRetries = 2
	// validationBackoff is the fixed wait between validation retries.
	validationBackoff = 500 * time.Millisecond
	// ImageTypePrefix is the content-type prefix image candidates must carry.
	ImageTypePrefix = "image/"
)

// Selector picks previously-unseen, validated candidates for a query.
type Selector struct {
	cache     *Cache
	validator download.Validator
	logger    *slog.Logger

	// sleep is the retry backoff wait, replaceable in tests.
	sleep func(context.Context, time.Duration) error
}

// NewSelector creates a selector over the given cache and validator.
func NewSelector(cache *Cache, validator download.Validator, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		cache:     cache,
		validator: validator,
		logger:    logger,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// GetUnique scans candidates in order and returns up to desiredCount URLs
// that were neither returned earlier in this call nor previously delivered
// for the query. Each surviving candidate is validated before acceptance;
// validation failures are retried a bounded number of times with fixed
// backoff and then discarded. A candidate's failure never aborts the scan.
// Accepted URLs are recorded against the query.
func (s *Selector) GetUnique(ctx context.Context, query string, desiredCount int, candidates []string) []string {
	if desiredCount <= 0 {
		return nil
	}

	session := make(map[string]struct{}, desiredCount)
	accepted := make([]string, 0, desiredCount)

	for _, url := range candidates {
		if len(accepted) >= desiredCount {
			break
		}
		if _, seen := session[url]; seen {
			continue
		}
		if s.cache.WasDelivered(query, url) {
			continue
		}

		if !s.validate(ctx, url) {
			s.logger.DebugContext(ctx, "Discarding invalid candidate",
				slog.String("query", query),
				slog.String("url", url))
			continue
		}

		session[url] = struct{}{}
		accepted = append(accepted, url)
		s.cache.MarkDelivered(query, url)
	}

	return accepted
}

// validate checks a candidate, retrying Unreachable and InvalidType results
// with fixed backoff before giving up.
func (s *Selector) validate(ctx context.Context, url string) bool {
	for attempt := 0; attempt <= validationRetries; attempt++ {
		if s.validator.Validate(ctx, url, ImageTypePrefix) == download.Valid {
			return true
		}
		if attempt < validationRetries {
			if err := s.sleep(ctx, validationBackoff); err != nil {
				return false
			}
		}
	}
	return false
}
