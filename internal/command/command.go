// Package command provides the literal command registry and the
// response-expectation gate that decides when a presence indicator is set.
package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/voxhall/mediabot/internal/chat"
)

// DefaultPrefix marks a message as a command.
const DefaultPrefix = "!"

// Handler executes one command. Handlers report completion by returning nil
// and failure by returning an error; the processor is the single point that
// converts a handler error into a logged error and a user-facing reply.
type Handler func(ctx context.Context, msg chat.Message, args []string) error

// Spec describes one registered command.
type Spec struct {
	// Name is the literal command token, without prefix (e.g. "img").
	Name string

	// Handler runs the command.
	Handler Handler

	// ExpectsReply is the static per-command predicate deciding whether
	// the command will produce a visible reply. The presence indicator is
	// only set when it returns true, so a handler that silently returns
	// nothing can never leave an indicator dangling.
	ExpectsReply func(msg chat.Message, args []string) bool

	// Presence is the indicator to show while the command runs.
	// Defaults to typing.
	Presence chat.PresenceState
}

// Registry matches messages to commands and runs them under the presence
// gate.
type Registry struct {
	prefix   string
	commands map[string]Spec
	presence chat.PresenceManager
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(prefix string, presence chat.PresenceManager, logger *slog.Logger) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		prefix:   prefix,
		commands: make(map[string]Spec),
		presence: presence,
		logger:   logger,
	}
}

// Register adds a command to the registry.
func (r *Registry) Register(spec Spec) {
	if spec.Presence == "" {
		spec.Presence = chat.PresenceTyping
	}
	r.commands[spec.Name] = spec
}

// Dispatch runs the command matching the message, if any. handled is false
// when the message is not a literal command match.
func (r *Registry) Dispatch(ctx context.Context, msg chat.Message) (bool, error) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], r.prefix) {
		return false, nil
	}

	name := strings.TrimPrefix(fields[0], r.prefix)
	spec, ok := r.commands[name]
	if !ok {
		return false, nil
	}
	args := fields[1:]

	r.logger.InfoContext(ctx, "Executing command",
		slog.String("command", name),
		slog.String("chat_id", msg.ChatID),
		slog.Int("args", len(args)))

	// The presence indicator is only set when the command is expected to
	// produce a visible reply, and its release is scoped to this call so
	// every exit path (success, rejection, error) clears it.
	if spec.ExpectsReply == nil || spec.ExpectsReply(msg, args) {
		release := r.presence.Acquire(ctx, msg.ChatID, spec.Presence)
		defer release()
	}

	return true, spec.Handler(ctx, msg, args)
}

// Names returns the registered command names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}
