package pipeline

import (
	"sync"

	"github.com/google/uuid"

	"github.com/voxhall/mediabot/internal/extract"
)

// ItemOutcome records one sub-URL's result within a transaction.
type ItemOutcome struct {
	URL     string
	Success bool
	Reason  string
}

// Transaction correlates extraction, download, and send for all sub-items
// derived from a single media link. It lives only until the outcome is
// reported; nothing is persisted.
type Transaction struct {
	ID        string
	SourceURL string
	Platform  extract.Platform

	mu    sync.Mutex
	items []ItemOutcome
}

// NewTransaction creates a transaction with a fresh correlation id.
func NewTransaction(sourceURL string, platform extract.Platform) *Transaction {
	return &Transaction{
		ID:        uuid.NewString(),
		SourceURL: sourceURL,
		Platform:  platform,
	}
}

// RecordSuccess marks one sub-URL delivered.
func (t *Transaction) RecordSuccess(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, ItemOutcome{URL: url, Success: true})
}

// RecordFailure marks one sub-URL failed with a reason.
func (t *Transaction) RecordFailure(url, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, ItemOutcome{URL: url, Success: false, Reason: reason})
}

// Result is the settled outcome of a transaction. The transaction succeeds
// when at least one item succeeded; it is partial when some but not all did.
type Result struct {
	TransactionID  string
	SuccessCount   int
	TotalCount     int
	Success        bool
	PartialSuccess bool
	Items          []ItemOutcome
}

// Result aggregates per-item outcomes, settle-all style.
func (t *Transaction) Result() Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := Result{
		TransactionID: t.ID,
		TotalCount:    len(t.items),
		Items:         make([]ItemOutcome, len(t.items)),
	}
	copy(r.Items, t.items)

	for _, item := range t.items {
		if item.Success {
			r.SuccessCount++
		}
	}
	r.Success = r.SuccessCount >= 1
	r.PartialSuccess = r.SuccessCount > 0 && r.SuccessCount < r.TotalCount
	return r
}
