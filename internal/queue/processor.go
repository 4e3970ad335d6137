package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/voxhall/mediabot/internal/chat"
)

// Processor defaults.
const (
	// DefaultPollInterval is how often the consumer loop polls an idle queue.
	DefaultPollInterval = 100 * time.Millisecond

	// dispatchTimeout bounds a single message's dispatch.
	dispatchTimeout = 5 * time.Minute
)

// User-facing notices. The processor is the single point that converts
// handler failures into replies; handlers report failure by returning errors.
const (
	throttleNotice = "You're sending messages too quickly. Please wait a moment and try again."
	genericFailure = "Sorry, something went wrong while handling that. Please try again."
)

// Commander dispatches literal command matches.
type Commander interface {
	// Dispatch runs a matching command handler. handled is false when the
	// message is not a command.
	Dispatch(ctx context.Context, msg chat.Message) (handled bool, err error)
}

// MediaDeliverer attempts media extraction and delivery for a message.
type MediaDeliverer interface {
	// Deliver runs the media pipeline. handled is false when the message
	// contains no supported media link.
	Deliver(ctx context.Context, msg chat.Message) (handled bool, err error)
}

// Responder produces an AI-generated reply for a message.
type Responder interface {
	Respond(ctx context.Context, msg chat.Message) (string, error)
}

// Forwarder pushes an inbound message to an external webhook.
type Forwarder interface {
	Forward(ctx context.Context, msg chat.Message) error
}

// ProcessorConfig holds the processor's collaborators.
type ProcessorConfig struct {
	Queue        *MessageQueue
	RateLimiter  RateLimiter
	Stats        *StatsCollector
	Messenger    chat.Messenger
	Commands     Commander
	Media        MediaDeliverer
	Responder    Responder // Optional
	Forwarder    Forwarder // Optional
	Awaiter      *chat.Awaiter
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Processor is the single ordered consumer of the message queue. It is
// process-wide long-lived state: the loop only stops on context
// cancellation, and a single message's failure never halts subsequent
// dequeues.
type Processor struct {
	cfg          ProcessorConfig
	stateMachine StateMachine
	wg           sync.WaitGroup
}

// NewProcessor creates a processor over the given collaborators.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStatsCollector()
	}
	return &Processor{
		cfg:          cfg,
		stateMachine: NewStateMachine(),
	}
}

// Enqueue adds an inbound message to the queue. Never blocks, never rejects.
func (p *Processor) Enqueue(msg chat.Message) {
	p.cfg.Queue.Enqueue(msg)
}

// Run polls the queue and drains it to empty before idling. Blocks until the
// context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	p.wg.Add(1)
	defer p.wg.Done()

	p.cfg.Logger.InfoContext(ctx, "Message processor starting",
		slog.Duration("poll_interval", p.cfg.PollInterval))

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.cfg.Logger.InfoContext(ctx, "Message processor stopping")
			return fmt.Errorf("%w: %w", ErrQueueStopped, ctx.Err())
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// Wait blocks until the processor loop and in-flight forwards have finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// drain dequeues until the queue is empty.
func (p *Processor) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry := p.cfg.Queue.Dequeue()
		if entry == nil {
			return
		}
		p.process(ctx, entry)
	}
}

// process handles one dequeued entry. It must never panic out of its
// iteration: any failure is caught, logged, and counted.
func (p *Processor) process(ctx context.Context, entry *Entry) {
	defer func() {
		if r := recover(); r != nil {
			p.cfg.Stats.RecordError()
			p.cfg.Logger.ErrorContext(ctx, "PANIC while processing message",
				slog.String("message_id", entry.Message.ID),
				slog.Any("panic", r),
				slog.String("stack_trace", string(debug.Stack())))
		}
	}()

	msg := entry.Message

	if !msg.HasChat() {
		entry.SetError(ErrNoChatContext)
		p.transition(entry, StateDropped, "no chat context")
		p.transition(entry, StateCompleted, "dropped")
		p.cfg.Stats.RecordDropped()
		p.cfg.Logger.InfoContext(ctx, "Dropping message without chat context",
			slog.String("message_id", msg.ID),
			slog.String("sender", msg.Sender))
		return
	}

	p.transition(entry, StateRateChecked, "rate check")

	if p.cfg.RateLimiter.IsLimited(msg.ChatID) {
		entry.SetError(ErrRateLimited)
		p.transition(entry, StateLimited, "rate limited")
		p.cfg.Stats.RecordRateLimited()
		p.reply(ctx, msg.ChatID, throttleNotice)
		return
	}

	p.transition(entry, StateRouted, "dispatch")

	dispatchCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	p.dispatch(dispatchCtx, entry)
	p.cfg.Stats.RecordProcessed()
}

// dispatch routes a message by content shape.
func (p *Processor) dispatch(ctx context.Context, entry *Entry) {
	msg := entry.Message

	// A pending reply waiter (e.g. search disambiguation) claims the
	// message before any other routing.
	if p.cfg.Awaiter != nil && p.cfg.Awaiter.Observe(msg) {
		p.transition(entry, StateDropped, "claimed by reply waiter")
		p.transition(entry, StateCompleted, "done")
		return
	}

	if handled, err := p.cfg.Commands.Dispatch(ctx, msg); handled {
		p.transition(entry, StateCommandExecuted, "command")
		if err != nil {
			entry.SetError(err)
			p.cfg.Stats.RecordError()
			p.cfg.Logger.ErrorContext(ctx, "Command handler failed",
				slog.String("message_id", msg.ID),
				slog.String("chat_id", msg.ChatID),
				slog.Any("error", err))
			p.reply(ctx, msg.ChatID, genericFailure)
		} else {
			p.cfg.Stats.RecordCommand()
		}
		p.transition(entry, StateCompleted, "done")
		return
	}

	// Not a command: forward to the webhook concurrently with the media
	// attempt. The forward is best-effort and never affects the reply path.
	if p.cfg.Forwarder != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.cfg.Logger.ErrorContext(ctx, "PANIC in webhook forward",
						slog.Any("panic", r))
				}
			}()
			if err := p.cfg.Forwarder.Forward(ctx, msg); err != nil {
				p.cfg.Logger.WarnContext(ctx, "Webhook forward failed",
					slog.String("message_id", msg.ID),
					slog.Any("error", err))
			}
		}()
	}

	if handled, err := p.cfg.Media.Deliver(ctx, msg); handled {
		p.transition(entry, StateMediaDelivered, "media")
		p.cfg.Stats.RecordMediaTransaction()
		if err != nil {
			entry.SetError(err)
			p.cfg.Stats.RecordError()
			p.cfg.Logger.ErrorContext(ctx, "Media delivery failed",
				slog.String("message_id", msg.ID),
				slog.String("chat_id", msg.ChatID),
				slog.Any("error", err))
		}
		p.transition(entry, StateCompleted, "done")
		return
	}

	p.respondWithAI(ctx, entry)
}

// respondWithAI asks the opaque AI backend for a reply.
func (p *Processor) respondWithAI(ctx context.Context, entry *Entry) {
	msg := entry.Message

	if p.cfg.Responder == nil {
		p.transition(entry, StateDropped, "no responder configured")
		p.transition(entry, StateCompleted, "done")
		p.cfg.Stats.RecordDropped()
		return
	}

	p.transition(entry, StateAIResponded, "ai")

	response, err := p.cfg.Responder.Respond(ctx, msg)
	if err != nil {
		entry.SetError(err)
		p.cfg.Stats.RecordError()
		p.cfg.Logger.ErrorContext(ctx, "AI responder failed",
			slog.String("message_id", msg.ID),
			slog.String("chat_id", msg.ChatID),
			slog.Any("error", err))
		p.reply(ctx, msg.ChatID, genericFailure)
	} else if response != "" {
		p.cfg.Stats.RecordAIResponse()
		p.reply(ctx, msg.ChatID, response)
	}

	p.transition(entry, StateCompleted, "done")
}

// reply sends a text reply, logging transport failures. Transport errors are
// swallowed toward the user: a failed reply must not look like a crash.
func (p *Processor) reply(ctx context.Context, chatID, text string) {
	if err := p.cfg.Messenger.Reply(ctx, chatID, text); err != nil {
		p.cfg.Logger.ErrorContext(ctx, "Failed to send reply",
			slog.String("chat_id", chatID),
			slog.Any("error", err))
	}
}

// transition applies a state change, falling back to a direct set when the
// machine rejects it so the lifecycle log stays coherent.
func (p *Processor) transition(entry *Entry, to State, reason string) {
	if err := p.stateMachine.Transition(entry, to, reason); err != nil {
		p.cfg.Logger.Warn("Unexpected state transition",
			slog.String("message_id", entry.Message.ID),
			slog.String("to", string(to)),
			slog.Any("error", err))
		entry.setState(to, reason)
	}
}
