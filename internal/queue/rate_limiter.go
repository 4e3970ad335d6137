package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// Rate limiter defaults.
const (
	// DefaultRateWindow is the default sliding window length.
	DefaultRateWindow = 60 * time.Second
	// DefaultMaxRequests is the default number of requests allowed per window.
	DefaultMaxRequests = 5
)

// RateLimiter caps message frequency per chat.
type RateLimiter interface {
	// IsLimited reports whether the chat has exhausted its window.
	// A limited attempt is not recorded; an allowed attempt is.
	IsLimited(chatID string) bool
}

// rateWindow holds the recent request timestamps for one chat.
type rateWindow struct {
	stamps []time.Time
}

// SlidingWindowLimiter implements RateLimiter with a per-chat sliding window
// of request timestamps. Stale entries are pruned lazily on each check, so
// windows are naturally bounded and never need explicit teardown.
type SlidingWindowLimiter struct {
	windows     map[string]*rateWindow
	window      time.Duration
	maxRequests int
	limitedHits atomic.Int64
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindowLimiter creates a limiter allowing maxRequests per window
// per chat.
func NewSlidingWindowLimiter(window time.Duration, maxRequests int) *SlidingWindowLimiter {
	if window <= 0 {
		window = DefaultRateWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	return &SlidingWindowLimiter{
		windows:     make(map[string]*rateWindow),
		window:      window,
		maxRequests: maxRequests,
		now:         time.Now,
	}
}

// IsLimited checks and updates the chat's window atomically. A burst exactly
// at the limit boundary is rejected: the comparison is >=, not >.
func (rl *SlidingWindowLimiter) IsLimited(chatID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	w, exists := rl.windows[chatID]
	if !exists {
		w = &rateWindow{}
		rl.windows[chatID] = w
	}

	// Prune timestamps older than the window.
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= rl.maxRequests {
		rl.limitedHits.Add(1)
		return true
	}

	w.stamps = append(w.stamps, now)
	return false
}

// LimitedCount returns the total number of rejected checks.
func (rl *SlidingWindowLimiter) LimitedCount() int64 {
	return rl.limitedHits.Load()
}

// Stats returns rate limiter statistics.
func (rl *SlidingWindowLimiter) Stats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := make(map[string]any)
	stats["chats"] = len(rl.windows)
	stats["limited_requests"] = rl.limitedHits.Load()
	return stats
}

// DefaultRateLimiter creates a limiter with sensible defaults:
// 5 requests per rolling 60 seconds per chat.
func DefaultRateLimiter() *SlidingWindowLimiter {
	return NewSlidingWindowLimiter(DefaultRateWindow, DefaultMaxRequests)
}
