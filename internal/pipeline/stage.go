// Package pipeline orchestrates media delivery as three bounded-concurrency
// stages (extract, download, send) with per-transaction partial-success
// accounting.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// taskBuffer is the per-stage task queue depth.
const taskBuffer = 64

// task is a unit of work submitted to a stage. It carries its transaction id
// for logging correlation and exists only for the duration of its stage.
type task struct {
	txnID string
	fn    func(context.Context) error
	done  chan error
}

// Stage is a bounded-concurrency, paced worker pool. It enforces both a
// max-parallel cap (slots) and a minimum inter-start interval (pace), so a
// burst of transactions cannot saturate the stage's downstream dependency.
type Stage struct {
	name   string
	slots  int
	pace   time.Duration
	tasks  chan task
	logger *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{} // closed when the dispatcher exits
	wg       sync.WaitGroup
}

// NewStage creates a stage with the given concurrency cap and pacing interval.
func NewStage(name string, slots int, pace time.Duration, logger *slog.Logger) *Stage {
	if slots < 1 {
		slots = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		name:   name,
		slots:  slots,
		pace:   pace,
		tasks:  make(chan task, taskBuffer),
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the stage dispatcher. Tasks submitted before Start wait in
// the queue.
func (s *Stage) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.dispatch(ctx)
}

// dispatch starts queued tasks, honoring the slot cap and pacing interval.
func (s *Stage) dispatch(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.doneCh)
	defer s.failQueued()

	sem := make(chan struct{}, s.slots)

	for {
		var t task
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case t = <-s.tasks:
		}

		// Acquire a slot before starting.
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			t.done <- ctx.Err()
			return
		case <-s.stopCh:
			t.done <- fmt.Errorf("stage %s stopped", s.name)
			return
		}

		s.wg.Add(1)
		go func(t task) {
			defer s.wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.logger.ErrorContext(ctx, "PANIC in stage task",
						slog.String("stage", s.name),
						slog.String("transaction_id", t.txnID),
						slog.Any("panic", r),
						slog.String("stack_trace", string(debug.Stack())))
					t.done <- fmt.Errorf("panic in %s stage: %v", s.name, r)
				}
			}()
			t.done <- t.fn(ctx)
		}(t)

		// Minimum inter-start interval, in addition to the slot cap.
		if s.pace > 0 {
			timer := time.NewTimer(s.pace)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.stopCh:
				timer.Stop()
				return
			}
		}
	}
}

// Do submits fn to the stage and waits for it to finish. The call suspends
// while the stage is saturated; sibling tasks in other stages proceed
// independently.
func (s *Stage) Do(ctx context.Context, txnID string, fn func(context.Context) error) error {
	t := task{txnID: txnID, fn: fn, done: make(chan error, 1)}

	select {
	case s.tasks <- t:
	case <-ctx.Done():
		return fmt.Errorf("stage %s submit cancelled: %w", s.name, ctx.Err())
	case <-s.stopCh:
		return fmt.Errorf("stage %s stopped", s.name)
	case <-s.doneCh:
		return fmt.Errorf("stage %s stopped", s.name)
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("stage %s task abandoned: %w", s.name, ctx.Err())
	case <-s.stopCh:
		return fmt.Errorf("stage %s stopped", s.name)
	case <-s.doneCh:
		return fmt.Errorf("stage %s stopped", s.name)
	}
}

// failQueued drains tasks still buffered when the dispatcher exits, so a
// submitter with a live context of its own never blocks on a task that will
// not run. Runs before doneCh closes; anything enqueued after it is caught
// by the doneCh branches in Do.
func (s *Stage) failQueued() {
	for {
		select {
		case t := <-s.tasks:
			t.done <- fmt.Errorf("stage %s stopped", s.name)
		default:
			return
		}
	}
}

// Stop shuts the stage down and waits for in-flight tasks.
func (s *Stage) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}
