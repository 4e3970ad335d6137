package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/mediabot/internal/download"
)

func TestCacheGetSetRoundTrip(t *testing.T) {
	c := NewCache(Config{})

	_, ok := c.Get("https://cdn.example.com/a.jpg")
	require.False(t, ok)

	c.Set("https://cdn.example.com/a.jpg", download.Media{Data: "YQ==", MimeType: "image/jpeg"})

	got, ok := c.Get("https://cdn.example.com/a.jpg")
	require.True(t, ok)
	assert.Equal(t, "YQ==", got.Data)
	assert.Equal(t, "image/jpeg", got.MimeType)
}

func TestCacheStaleEntryIsMiss(t *testing.T) {
	current := time.Now()
	c := NewCache(Config{TTL: time.Minute})
	c.now = func() time.Time { return current }

	c.Set("url-1", download.Media{Data: "YQ=="})

	current = current.Add(61 * time.Second)
	_, ok := c.Get("url-1")
	assert.False(t, ok, "an expired entry reads as a miss")
}

func TestCacheFreshHitRefreshesTouch(t *testing.T) {
	current := time.Now()
	c := NewCache(Config{TTL: time.Minute})
	c.now = func() time.Time { return current }

	c.Set("url-1", download.Media{Data: "YQ=="})

	// Touch just inside the TTL, then advance past the original expiry.
	current = current.Add(50 * time.Second)
	_, ok := c.Get("url-1")
	require.True(t, ok)

	current = current.Add(50 * time.Second)
	_, ok = c.Get("url-1")
	assert.True(t, ok, "the read above restarted the TTL clock")
}

func TestCacheDeliveredSetIdempotent(t *testing.T) {
	c := NewCache(Config{})

	assert.False(t, c.WasDelivered("cats", "url-1"))

	c.MarkDelivered("cats", "url-1")
	c.MarkDelivered("cats", "url-1")

	assert.True(t, c.WasDelivered("cats", "url-1"))
	assert.False(t, c.WasDelivered("cats", "url-2"))
	assert.False(t, c.WasDelivered("dogs", "url-1"), "queries are independent")
	assert.Equal(t, 1, c.DeliveredCount("cats"))
}

func TestCacheFlushWipesEverything(t *testing.T) {
	c := NewCache(Config{})

	c.Set("url-1", download.Media{Data: "YQ=="})
	c.MarkDelivered("cats", "url-2")
	require.Equal(t, 2, c.Len())

	assert.Equal(t, 2, c.Flush())
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("url-1")
	assert.False(t, ok)
	assert.False(t, c.WasDelivered("cats", "url-2"))
}

func TestCacheSweepKeepsMostRecentHalf(t *testing.T) {
	current := time.Now()
	c := NewCache(Config{MaxSize: 10})
	c.now = func() time.Time { return current }

	// 20 entries with strictly increasing touch times.
	for i := 0; i < 20; i++ {
		current = current.Add(time.Second)
		c.Set(fmt.Sprintf("url-%d", i), download.Media{Data: "YQ=="})
	}

	evicted := c.Sweep()
	assert.Equal(t, 10, evicted)
	assert.Equal(t, 10, c.Len())

	// The newest half survives, the oldest half is gone.
	for i := 10; i < 20; i++ {
		_, ok := c.Get(fmt.Sprintf("url-%d", i))
		assert.True(t, ok, "url-%d should survive", i)
	}
	for i := 0; i < 10; i++ {
		_, ok := c.Get(fmt.Sprintf("url-%d", i))
		assert.False(t, ok, "url-%d should be evicted", i)
	}
}

func TestCacheSweepBelowCeilingIsNoop(t *testing.T) {
	c := NewCache(Config{MaxSize: 10})

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("url-%d", i), download.Media{Data: "YQ=="})
	}

	assert.Equal(t, 0, c.Sweep())
	assert.Equal(t, 10, c.Len())
}
