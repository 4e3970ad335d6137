package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/mediabot/internal/download"
	"github.com/voxhall/mediabot/internal/mocks"
)

func newFastSelector(cache *Cache, validator download.Validator) *Selector {
	s := NewSelector(cache, validator, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestGetUniqueReturnsUpToDesiredCount(t *testing.T) {
	s := newFastSelector(NewCache(Config{}), mocks.NewMockValidator())

	got := s.GetUnique(context.Background(), "cats", 3,
		[]string{"url-1", "url-2", "url-3", "url-4", "url-5"})

	assert.Equal(t, []string{"url-1", "url-2", "url-3"}, got)
}

func TestGetUniqueSkipsDeliveredAndDuplicates(t *testing.T) {
	cache := NewCache(Config{})
	cache.MarkDelivered("cats", "url-1")
	s := newFastSelector(cache, mocks.NewMockValidator())

	got := s.GetUnique(context.Background(), "cats", 5,
		[]string{"url-1", "url-2", "url-2", "url-3"})

	assert.Equal(t, []string{"url-2", "url-3"}, got)
}

func TestGetUniqueDiscardsInvalidCandidates(t *testing.T) {
	validator := mocks.NewMockValidator()
	validator.Results["url-2"] = download.InvalidType
	validator.Results["url-3"] = download.Unreachable
	s := newFastSelector(NewCache(Config{}), validator)

	got := s.GetUnique(context.Background(), "cats", 3,
		[]string{"url-1", "url-2", "url-3", "url-4", "url-5"})

	assert.Equal(t, []string{"url-1", "url-4", "url-5"}, got)
}

func TestGetUniqueRetriesValidationBeforeDiscarding(t *testing.T) {
	validator := mocks.NewMockValidator()
	validator.Results["url-1"] = download.Unreachable
	s := newFastSelector(NewCache(Config{}), validator)

	got := s.GetUnique(context.Background(), "cats", 1, []string{"url-1"})

	assert.Empty(t, got)
	assert.Equal(t, validationRetries+1, validator.CallCount("url-1"))
}

func TestGetUniqueRecordsAcceptedURLs(t *testing.T) {
	cache := NewCache(Config{})
	s := newFastSelector(cache, mocks.NewMockValidator())

	first := s.GetUnique(context.Background(), "cats", 2, []string{"url-1", "url-2", "url-3"})
	require.Equal(t, []string{"url-1", "url-2"}, first)

	// The same call later never repeats what was already delivered.
	second := s.GetUnique(context.Background(), "cats", 2, []string{"url-1", "url-2", "url-3"})
	assert.Equal(t, []string{"url-3"}, second)
}

func TestGetUniqueZeroCount(t *testing.T) {
	s := newFastSelector(NewCache(Config{}), mocks.NewMockValidator())

	assert.Nil(t, s.GetUnique(context.Background(), "cats", 0, []string{"url-1"}))
}
