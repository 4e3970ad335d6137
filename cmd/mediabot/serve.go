package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxhall/mediabot/internal/ai"
	"github.com/voxhall/mediabot/internal/api"
	"github.com/voxhall/mediabot/internal/chat"
	"github.com/voxhall/mediabot/internal/command"
	"github.com/voxhall/mediabot/internal/config"
	"github.com/voxhall/mediabot/internal/dedup"
	"github.com/voxhall/mediabot/internal/download"
	"github.com/voxhall/mediabot/internal/extract"
	"github.com/voxhall/mediabot/internal/pipeline"
	"github.com/voxhall/mediabot/internal/queue"
	"github.com/voxhall/mediabot/internal/search"
	"github.com/voxhall/mediabot/internal/speech"
	"github.com/voxhall/mediabot/internal/webhook"
)

// shutdownGrace bounds how long in-flight work may run after a signal.
const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot daemon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "mediabot starting",
		slog.String("version", Version),
		slog.String("gateway", cfg.Chat.GatewayURL))

	messenger := chat.NewGatewayMessenger(cfg.Chat.GatewayURL, cfg.Chat.Token, nil, logger)
	presence := chat.NewPresenceManager(messenger)
	awaiter := chat.NewAwaiter()

	limiter := queue.NewSlidingWindowLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	msgQueue := queue.NewMessageQueue()
	stats := queue.NewStatsCollector()

	cache := dedup.NewCache(dedup.Config{
		TTL:           cfg.Cache.TTL,
		MaxSize:       cfg.Cache.MaxSize,
		FlushInterval: cfg.Cache.FlushInterval,
		SweepInterval: cfg.Cache.SweepInterval,
		Logger:        logger,
	})
	cache.Start(ctx)

	extractor := extract.NewDefaultService(logger, cfg.Extract.Timeout, nil)
	downloader := download.NewClient(download.Config{
		MaxRetries:     cfg.Download.MaxRetries,
		MaxBytes:       cfg.Download.MaxBytes,
		RequestTimeout: cfg.Download.RequestTimeout,
		Logger:         logger,
	})

	pl := pipeline.New(pipeline.Config{
		Extractor:     extractor,
		Downloader:    downloader,
		Cache:         cache,
		Messenger:     messenger,
		MaxMediaItems: cfg.Pipeline.MaxMediaItems,
		Extract:       pipeline.StageConfig{Slots: cfg.Stages.Extract.Slots, Pace: cfg.Stages.Extract.Pace},
		Download:      pipeline.StageConfig{Slots: cfg.Stages.Download.Slots, Pace: cfg.Stages.Download.Pace},
		Send:          pipeline.StageConfig{Slots: cfg.Stages.Send.Slots, Pace: cfg.Stages.Send.Pace},
		Logger:        logger,
	})
	pl.Start(ctx)

	registry := command.NewRegistry(cfg.Commands.Prefix, presence, logger)
	registry.Register(command.NewMediaCommand(pl))
	if cfg.Search.URL != "" {
		searcher := search.NewClient(search.Config{
			URL:    cfg.Search.URL,
			APIKey: cfg.Search.APIKey,
			Logger: logger,
		})
		selector := dedup.NewSelector(cache, downloader, logger)
		registry.Register(command.NewImageSearchCommand(searcher, selector, downloader, messenger))
	}
	if cfg.Speech.URL != "" {
		speaker := speech.NewClient(speech.Config{URL: cfg.Speech.URL, Voice: cfg.Speech.Voice})
		registry.Register(command.NewSayCommand(speaker, messenger))
	}
	logger.InfoContext(ctx, "Commands registered", slog.Any("commands", registry.Names()))

	var responder queue.Responder
	if cfg.AI.APIKey != "" {
		responder = ai.NewClient(ai.Config{
			APIKey:         cfg.AI.APIKey,
			BaseURL:        cfg.AI.BaseURL,
			Model:          cfg.AI.Model,
			SystemPrompt:   cfg.AI.SystemPrompt,
			RequestTimeout: cfg.AI.RequestTimeout,
		})
	}

	var forwarder queue.Forwarder
	if cfg.Webhook.URL != "" {
		forwarder = webhook.NewForwarder(cfg.Webhook.URL, nil)
	}

	processor := queue.NewProcessor(queue.ProcessorConfig{
		Queue:        msgQueue,
		RateLimiter:  limiter,
		Stats:        stats,
		Messenger:    messenger,
		Commands:     registry,
		Media:        pl,
		Responder:    responder,
		Forwarder:    forwarder,
		Awaiter:      awaiter,
		PollInterval: cfg.Queue.PollInterval,
		Logger:       logger,
	})

	apiSrv := api.NewServer(cfg.API.Addr, stats, limiter, cache, logger)
	go func() {
		if err := apiSrv.Start(ctx); err != nil {
			logger.ErrorContext(ctx, "Control API failed", slog.Any("error", err))
		}
	}()

	inbound, err := messenger.Subscribe(ctx)
	if err != nil {
		return err
	}
	go func() {
		for msg := range inbound {
			processor.Enqueue(msg)
		}
	}()

	logger.InfoContext(ctx, "mediabot started, listening for messages")

	err = processor.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// In-flight dispatches finish on their own timeouts; give them a
	// bounded window, then clear any indicators left behind.
	done := make(chan struct{})
	go func() {
		processor.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		logger.Warn("Shutdown grace period elapsed with work in flight")
	}
	presence.StopAll()
	pl.Stop()

	logger.Info("mediabot stopped")
	return nil
}
