package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/voxhall/mediabot/internal/chat"
	"github.com/voxhall/mediabot/internal/dedup"
	"github.com/voxhall/mediabot/internal/download"
	"github.com/voxhall/mediabot/internal/extract"
)

// Pipeline defaults.
const (
	// DefaultMaxMediaItems caps resolved sub-URLs per transaction,
	// protecting against platforms returning unbounded galleries.
	DefaultMaxMediaItems = 10

	// Default stage sizing: extract/download/send slots and pacing.
	DefaultExtractSlots  = 3
	DefaultDownloadSlots = 5
	DefaultSendSlots     = 2
	DefaultExtractPace   = 200 * time.Millisecond
	DefaultDownloadPace  = 100 * time.Millisecond
	DefaultSendPace      = 250 * time.Millisecond
)

// urlPattern finds the first shareable link in a message body.
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Downloader fetches resolved media bytes.
type Downloader interface {
	Download(ctx context.Context, url string) (download.Media, error)
}

// StageConfig sizes one stage.
type StageConfig struct {
	Slots int
	Pace  time.Duration
}

// Config holds the pipeline's collaborators and tuning.
type Config struct {
	Extractor  *extract.Service
	Downloader Downloader
	Cache      *dedup.Cache
	Messenger  chat.Messenger

	MaxMediaItems int
	Extract       StageConfig
	Download      StageConfig
	Send          StageConfig
	Logger        *slog.Logger
}

// Pipeline composes extraction, download, and send per media link across
// three independently bounded stages.
type Pipeline struct {
	cfg Config

	extractStage  *Stage
	downloadStage *Stage
	sendStage     *Stage
}

// New creates a pipeline, applying stage defaults for unset fields.
func New(cfg Config) *Pipeline {
	if cfg.MaxMediaItems <= 0 {
		cfg.MaxMediaItems = DefaultMaxMediaItems
	}
	if cfg.Extract.Slots <= 0 {
		cfg.Extract = StageConfig{Slots: DefaultExtractSlots, Pace: DefaultExtractPace}
	}
	if cfg.Download.Slots <= 0 {
		cfg.Download = StageConfig{Slots: DefaultDownloadSlots, Pace: DefaultDownloadPace}
	}
	if cfg.Send.Slots <= 0 {
		cfg.Send = StageConfig{Slots: DefaultSendSlots, Pace: DefaultSendPace}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		cfg:           cfg,
		extractStage:  NewStage("extract", cfg.Extract.Slots, cfg.Extract.Pace, cfg.Logger),
		downloadStage: NewStage("download", cfg.Download.Slots, cfg.Download.Pace, cfg.Logger),
		sendStage:     NewStage("send", cfg.Send.Slots, cfg.Send.Pace, cfg.Logger),
	}
}

// Start launches the stage dispatchers.
func (p *Pipeline) Start(ctx context.Context) {
	p.extractStage.Start(ctx)
	p.downloadStage.Start(ctx)
	p.sendStage.Start(ctx)
}

// Stop shuts the stages down and waits for in-flight tasks.
func (p *Pipeline) Stop() {
	p.extractStage.Stop()
	p.downloadStage.Stop()
	p.sendStage.Stop()
}

// Deliver implements the processor's auto-media contract: it scans the
// message for a supported media link and, if found, runs a transaction.
// handled is false when the message carries no supported link, letting the
// AI path take over.
func (p *Pipeline) Deliver(ctx context.Context, msg chat.Message) (bool, error) {
	url := urlPattern.FindString(msg.Text)
	if url == "" {
		return false, nil
	}

	if _, supported := p.cfg.Extractor.Detect(url); !supported && !p.cfg.Extractor.IsDirect(url) {
		return false, nil
	}

	_, err := p.DeliverURL(ctx, msg.ChatID, url)
	return true, err
}

// DeliverURL runs a full media transaction for a link and reports the
// outcome. Unsupported links and other user-actionable failures produce a
// user notice; transport/internal failures are logged only.
func (p *Pipeline) DeliverURL(ctx context.Context, chatID, url string) (Result, error) {
	platform, supported := p.cfg.Extractor.Detect(url)
	direct := p.cfg.Extractor.IsDirect(url)

	if !supported && !direct {
		p.notify(ctx, chatID, ErrUnsupportedMedia)
		return Result{}, ErrUnsupportedMedia
	}

	txn := NewTransaction(url, platform)
	logger := p.cfg.Logger.With(slog.String("transaction_id", txn.ID))

	logger.InfoContext(ctx, "Media transaction started",
		slog.String("platform", string(platform)),
		slog.String("url", url))

	// A fresh cache hit for the whole link short-circuits the pipeline:
	// no extraction, no download, just a send.
	if media, ok := p.cfg.Cache.Get(url); ok {
		logger.InfoContext(ctx, "Serving cached media payload")
		if err := p.send(ctx, txn, chatID, url, media); err != nil {
			return txn.Result(), err
		}
		return txn.Result(), nil
	}

	resolved, err := p.resolve(ctx, txn, url)
	if err != nil {
		logger.ErrorContext(ctx, "Extraction failed", slog.Any("error", err))
		p.notify(ctx, chatID, err)
		return txn.Result(), err
	}

	if len(resolved) > p.cfg.MaxMediaItems {
		logger.WarnContext(ctx, "Transaction exceeds media item ceiling",
			slog.Int("resolved", len(resolved)),
			slog.Int("limit", p.cfg.MaxMediaItems))
		p.notify(ctx, chatID, ErrTooManyItems)
		return txn.Result(), ErrTooManyItems
	}

	// Each sub-URL's download->send chain runs independently and
	// concurrently with its siblings, bounded by each stage's own limits.
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for _, item := range resolved {
		wg.Add(1)
		go func(item extract.Resolved) {
			defer wg.Done()
			if err := p.deliverItem(ctx, txn, chatID, url, item); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(item)
	}
	wg.Wait()

	result := txn.Result()
	logger.InfoContext(ctx, "Media transaction settled",
		slog.Int("success_count", result.SuccessCount),
		slog.Int("total_count", result.TotalCount),
		slog.Bool("partial_success", result.PartialSuccess))

	if !result.Success {
		err := &ProcessingError{TransactionID: txn.ID, Err: firstErr}
		p.notify(ctx, chatID, firstErr)
		return result, err
	}
	return result, nil
}

// resolve runs extraction on its stage, or bypasses it for direct CDN URLs.
func (p *Pipeline) resolve(ctx context.Context, txn *Transaction, url string) ([]extract.Resolved, error) {
	if p.cfg.Extractor.IsDirect(url) {
		return []extract.Resolved{{URL: url}}, nil
	}

	var resolved []extract.Resolved
	err := p.extractStage.Do(ctx, txn.ID, func(stageCtx context.Context) error {
		items, rerr := p.cfg.Extractor.Resolve(stageCtx, url)
		if rerr != nil {
			return rerr
		}
		resolved = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// deliverItem runs one sub-URL's download->send chain.
func (p *Pipeline) deliverItem(ctx context.Context, txn *Transaction, chatID, sourceURL string, item extract.Resolved) error {
	var media download.Media

	if item.Data != "" {
		// The resolver returned an inline buffer; no download needed.
		media = download.Media{Data: item.Data, MimeType: item.MimeType}
	} else {
		err := p.downloadStage.Do(ctx, txn.ID, func(stageCtx context.Context) error {
			m, derr := p.cfg.Downloader.Download(stageCtx, item.URL)
			if derr != nil {
				return &DownloadError{URL: item.URL, Err: derr}
			}
			media = m
			return nil
		})
		if err != nil {
			txn.RecordFailure(item.URL, err.Error())
			p.cfg.Logger.WarnContext(ctx, "Sub-URL download failed",
				slog.String("transaction_id", txn.ID),
				slog.String("url", item.URL),
				slog.Any("error", err))
			return err
		}
		p.cfg.Cache.Set(item.URL, media)
	}

	// Cache under the source link too, so a re-sent share link is served
	// without extraction.
	if _, cached := p.cfg.Cache.Get(sourceURL); !cached {
		p.cfg.Cache.Set(sourceURL, media)
	}

	return p.send(ctx, txn, chatID, item.URL, media)
}

// send delivers one payload on the send stage and records the outcome.
func (p *Pipeline) send(ctx context.Context, txn *Transaction, chatID, url string, media download.Media) error {
	err := p.sendStage.Do(ctx, txn.ID, func(stageCtx context.Context) error {
		return p.cfg.Messenger.ReplyMedia(stageCtx, chatID, chat.Attachment{
			Data:     media.Data,
			MimeType: media.MimeType,
		})
	})
	if err != nil {
		txn.RecordFailure(url, fmt.Sprintf("send failed: %v", err))
		p.cfg.Logger.ErrorContext(ctx, "Sub-URL send failed",
			slog.String("transaction_id", txn.ID),
			slog.String("url", url),
			slog.Any("error", err))
		return err
	}

	txn.RecordSuccess(url)
	return nil
}

// notify sends a user-facing failure notice when the error warrants one.
func (p *Pipeline) notify(ctx context.Context, chatID string, err error) {
	notice, ok := UserNotice(err)
	if !ok {
		return
	}
	if rerr := p.cfg.Messenger.Reply(ctx, chatID, notice); rerr != nil {
		p.cfg.Logger.ErrorContext(ctx, "Failed to send failure notice",
			slog.String("chat_id", chatID),
			slog.Any("error", rerr))
	}
}
