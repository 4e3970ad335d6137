// Package dedup provides the time- and size-bounded caches that prevent
// duplicate image sends per query and redundant media re-downloads per URL.
package dedup

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/voxhall/mediabot/internal/download"
)

// Cache defaults.
const (
	// DefaultTTL is how long an entry stays fresh.
	DefaultTTL = 30 * time.Minute
	// DefaultMaxSize is the entry-count ceiling checked by the size sweep.
	DefaultMaxSize = 500
	// DefaultFlushInterval is the coarse full-wipe period.
	DefaultFlushInterval = time.Hour
	// DefaultSweepInterval is the size-check period.
	DefaultSweepInterval = 5 * time.Minute
)

// entry is one cached item: either a media payload (URL dedup) or a set of
// delivered URLs (query dedup), with a last-touched timestamp.
type entry struct {
	payload   *download.Media
	delivered map[string]struct{}
	touched   time.Time
}

// Config holds cache tuning.
type Config struct {
	TTL           time.Duration
	MaxSize       int
	FlushInterval time.Duration
	SweepInterval time.Duration
	Logger        *slog.Logger
}

// Cache is the combined TTL + size-bounded dedup store. Staleness is checked
// at read time; eviction runs on independent timers so reads and writes never
// block on it.
type Cache struct {
	cfg     Config
	entries map[string]*entry
	now     func() time.Time
	mu      sync.Mutex
}

// NewCache creates a cache with the given tuning, applying defaults for
// unset fields.
func NewCache(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache{
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Start runs the flush and sweep timers until the context is cancelled.
func (c *Cache) Start(ctx context.Context) {
	go c.runTimer(ctx, c.cfg.FlushInterval, func() {
		n := c.Flush()
		c.cfg.Logger.InfoContext(ctx, "Dedup cache flushed", slog.Int("evicted", n))
	})
	go c.runTimer(ctx, c.cfg.SweepInterval, func() {
		if n := c.Sweep(); n > 0 {
			c.cfg.Logger.InfoContext(ctx, "Dedup cache size sweep", slog.Int("evicted", n))
		}
	})
}

// runTimer invokes fn on every tick until cancellation.
func (c *Cache) runTimer(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Get returns the cached payload for a media URL. A stale hit counts as a
// miss; a fresh hit refreshes the last-touched timestamp.
func (c *Cache) Get(url string) (download.Media, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok || e.payload == nil {
		return download.Media{}, false
	}
	if c.now().Sub(e.touched) > c.cfg.TTL {
		return download.Media{}, false
	}
	e.touched = c.now()
	return *e.payload, true
}

// Set caches a media payload for a URL.
func (c *Cache) Set(url string, media download.Media) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = &entry{
		payload: &media,
		touched: c.now(),
	}
}

// WasDelivered reports whether the URL was already delivered for this query.
// Stale query entries are ignored.
func (c *Cache) WasDelivered(query, url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[query]
	if !ok || e.delivered == nil {
		return false
	}
	if c.now().Sub(e.touched) > c.cfg.TTL {
		return false
	}
	_, delivered := e.delivered[url]
	return delivered
}

// MarkDelivered records a URL as delivered for a query.
func (c *Cache) MarkDelivered(query, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[query]
	if !ok || e.delivered == nil {
		e = &entry{delivered: make(map[string]struct{})}
		c.entries[query] = e
	}
	e.delivered[url] = struct{}{}
	e.touched = c.now()
}

// DeliveredCount returns how many URLs are recorded for a query.
func (c *Cache) DeliveredCount(query string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[query]
	if !ok || e.delivered == nil {
		return 0
	}
	return len(e.delivered)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Flush wipes the whole cache and returns the number of evicted entries.
// This is the coarse memory-bound safeguard, independent of TTL staleness.
func (c *Cache) Flush() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*entry)
	return n
}

// Sweep enforces the size ceiling: when the entry count exceeds MaxSize,
// only the most-recently-touched half is kept. Returns the eviction count.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) <= c.cfg.MaxSize {
		return 0
	}

	type keyed struct {
		key     string
		touched time.Time
	}
	ordered := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		ordered = append(ordered, keyed{key: k, touched: e.touched})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].touched.After(ordered[j].touched)
	})

	keep := len(ordered) / 2
	evicted := 0
	for _, item := range ordered[keep:] {
		delete(c.entries, item.key)
		evicted++
	}
	return evicted
}
