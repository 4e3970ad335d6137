package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultPresenceInterval is the default interval at which presence
	// indicators are refreshed.
	DefaultPresenceInterval = 10 * time.Second
)

// PresenceManager manages typing/recording indicators for multiple chats.
type PresenceManager interface {
	// Start begins refreshing a presence indicator for a chat.
	Start(ctx context.Context, chatID string, state PresenceState) error

	// Stop clears the indicator for a chat.
	Stop(chatID string)

	// StopAll clears all active indicators.
	StopAll()

	// Acquire starts an indicator and returns a release function. The
	// release function clears the indicator and is safe to call on every
	// exit path, including after a handler panic.
	Acquire(ctx context.Context, chatID string, state PresenceState) func()
}

// activePresence represents one chat's running indicator.
type activePresence struct {
	cancel context.CancelFunc
}

// presenceManager implements PresenceManager.
type presenceManager struct {
	messenger Messenger
	active    map[string]*activePresence
	mu        sync.Mutex
	interval  time.Duration
}

// NewPresenceManager creates a presence manager with the default refresh interval.
func NewPresenceManager(messenger Messenger) PresenceManager {
	return NewPresenceManagerWithInterval(messenger, DefaultPresenceInterval)
}

// NewPresenceManagerWithInterval creates a presence manager with a custom refresh interval.
func NewPresenceManagerWithInterval(messenger Messenger, interval time.Duration) PresenceManager {
	return &presenceManager{
		messenger: messenger,
		active:    make(map[string]*activePresence),
		interval:  interval,
	}
}

// Start begins refreshing a presence indicator for a chat.
func (m *presenceManager) Start(ctx context.Context, chatID string, state PresenceState) error {
	if chatID == "" {
		return fmt.Errorf("chat ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[chatID]; exists {
		return fmt.Errorf("presence indicator already active for chat %s", chatID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.active[chatID] = &activePresence{cancel: cancel}

	go m.run(runCtx, chatID, state)

	return nil
}

// Stop clears the indicator for a chat.
func (m *presenceManager) Stop(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, exists := m.active[chatID]; exists {
		p.cancel()
		delete(m.active, chatID)
	}
}

// StopAll clears all active indicators.
func (m *presenceManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for chatID, p := range m.active {
		p.cancel()
		delete(m.active, chatID)
	}
}

// Acquire starts an indicator and returns an idempotent release function.
func (m *presenceManager) Acquire(ctx context.Context, chatID string, state PresenceState) func() {
	if err := m.Start(ctx, chatID, state); err != nil {
		slog.Default().DebugContext(ctx, "Presence indicator not started",
			slog.String("chat_id", chatID),
			slog.Any("error", err))
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.Stop(chatID)
		})
	}
}

// run refreshes the indicator until cancelled, then clears it.
func (m *presenceManager) run(ctx context.Context, chatID string, state PresenceState) {
	logger := slog.Default()

	if err := m.messenger.SendPresence(ctx, chatID, state); err != nil {
		logger.ErrorContext(ctx, "Failed to send initial presence indicator",
			slog.String("chat_id", chatID),
			slog.Any("error", err))
		// Continue anyway - don't fail the whole operation
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Clearing must not depend on the cancelled context.
			clearCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := m.messenger.ClearPresence(clearCtx, chatID); err != nil {
				logger.ErrorContext(clearCtx, "Failed to clear presence indicator",
					slog.String("chat_id", chatID),
					slog.Any("error", err))
			}
			cancel()
			return
		case <-ticker.C:
			if err := m.messenger.SendPresence(ctx, chatID, state); err != nil {
				logger.ErrorContext(ctx, "Failed to refresh presence indicator",
					slog.String("chat_id", chatID),
					slog.Any("error", err))
				return
			}
		}
	}
}
