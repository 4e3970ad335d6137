package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageRunsTask(t *testing.T) {
	s := NewStage("test", 2, 0, nil)
	s.Start(context.Background())
	defer s.Stop()

	var ran atomic.Bool
	err := s.Do(context.Background(), "txn-1", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestStageCapsConcurrency(t *testing.T) {
	s := NewStage("test", 2, 0, nil)
	s.Start(context.Background())
	defer s.Stop()

	var current, peak atomic.Int64
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(context.Background(), "txn-1", func(context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				<-release
				current.Add(-1)
				return nil
			})
		}()
	}

	// Let the first pair occupy both slots before opening the gate.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2), "slot cap exceeded")
}

func TestStageRecoversFromPanic(t *testing.T) {
	s := NewStage("test", 1, 0, nil)
	s.Start(context.Background())
	defer s.Stop()

	err := s.Do(context.Background(), "txn-1", func(context.Context) error {
		panic("task exploded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	// The stage keeps serving after a panic.
	assert.NoError(t, s.Do(context.Background(), "txn-2", func(context.Context) error {
		return nil
	}))
}

func TestStagePacesStarts(t *testing.T) {
	pace := 30 * time.Millisecond
	s := NewStage("test", 4, pace, nil)
	s.Start(context.Background())
	defer s.Stop()

	var mu sync.Mutex
	var starts []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(context.Background(), "txn-1", func(context.Context) error {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	require.Len(t, starts, 3)
	first, last := starts[0], starts[0]
	for _, ts := range starts {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), pace, "starts must be spaced by the pacing interval")
}

func TestStageDispatcherExitFailsQueuedTasks(t *testing.T) {
	s := NewStage("test", 1, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go func() {
		_ = s.Do(context.Background(), "txn-1", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// Two more submitters queue behind the occupied slot, each holding a
	// live context of its own.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- s.Do(context.Background(), "txn-2", func(context.Context) error {
				return nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)

	// Killing the dispatcher's context alone must unblock them.
	cancel()
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.Error(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("queued submitter still blocked after dispatcher exit")
		}
	}
}

func TestStageDoAfterStop(t *testing.T) {
	s := NewStage("test", 1, 0, nil)
	s.Start(context.Background())
	s.Stop()

	err := s.Do(context.Background(), "txn-1", func(context.Context) error { return nil })
	assert.Error(t, err)
}
