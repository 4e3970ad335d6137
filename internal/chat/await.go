package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAwaitTimeout indicates no matching reply arrived before the deadline.
var ErrAwaitTimeout = errors.New("timed out waiting for matching reply")

// waiter is a single registered one-shot subscription.
type waiter struct {
	pred func(Message) bool
	ch   chan Message
}

// Awaiter supports one-shot, predicate-filtered reply subscriptions. The
// processor feeds every inbound message through Observe; the first message
// matching a waiter's predicate resolves that waiter, which is then
// deregistered. Waiters are always deregistered on settle, success or
// timeout, so abandoned subscriptions cannot leak.
type Awaiter struct {
	waiters map[int]*waiter
	nextID  int
	mu      sync.Mutex
}

// NewAwaiter creates an empty awaiter.
func NewAwaiter() *Awaiter {
	return &Awaiter{waiters: make(map[int]*waiter)}
}

// Observe offers a message to all pending waiters. Each matching waiter is
// resolved exactly once and removed. Returns true if any waiter consumed it.
func (a *Awaiter) Observe(msg Message) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	consumed := false
	for id, w := range a.waiters {
		if !w.pred(msg) {
			continue
		}
		select {
		case w.ch <- msg:
			consumed = true
		default:
			// Waiter already settled via timeout; drop it.
		}
		delete(a.waiters, id)
	}
	return consumed
}

// Await blocks until a message matching pred arrives, the timeout elapses,
// or the context is cancelled. The subscription is removed on every outcome.
func (a *Awaiter) Await(ctx context.Context, pred func(Message) bool, timeout time.Duration) (Message, error) {
	w := &waiter{pred: pred, ch: make(chan Message, 1)}

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.waiters[id] = w
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.waiters, id)
		a.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-w.ch:
		return msg, nil
	case <-timer.C:
		return Message{}, ErrAwaitTimeout
	case <-ctx.Done():
		return Message{}, fmt.Errorf("context done while awaiting reply: %w", ctx.Err())
	}
}

// Pending returns the number of registered waiters.
func (a *Awaiter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.waiters)
}

// WaitForStable polls fetch until the observed value has been identical for
// stableChecks consecutive polls, then returns it. Gives up after maxAttempts
// polls, returning the last observed value. Used to let a streaming external
// reply settle before further processing.
func WaitForStable(
	ctx context.Context,
	fetch func(context.Context) (string, error),
	interval time.Duration,
	stableChecks int,
	maxAttempts int,
) (string, error) {
	if stableChecks < 1 {
		stableChecks = 1
	}

	var last string
	stable := 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, err := fetch(ctx)
		if err != nil {
			return "", fmt.Errorf("fetch during stability poll: %w", err)
		}

		if attempt > 0 && current == last {
			stable++
			if stable >= stableChecks {
				return current, nil
			}
		} else {
			stable = 0
		}
		last = current

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context done during stability poll: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	return last, nil
}
