package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/voxhall/mediabot/internal/chat"
	"github.com/voxhall/mediabot/internal/dedup"
	"github.com/voxhall/mediabot/internal/download"
	"github.com/voxhall/mediabot/internal/pipeline"
)

// Image search bounds.
const (
	defaultImageCount = 1
	maxImageCount     = 10
)

// Searcher is the opaque image-search backend.
type Searcher interface {
	// Search returns candidate image URLs for a query, best first.
	Search(ctx context.Context, query string) ([]string, error)
}

// Downloader fetches accepted image candidates.
type Downloader interface {
	Download(ctx context.Context, url string) (download.Media, error)
}

// Speaker is the opaque text-to-speech backend.
type Speaker interface {
	// Synthesize renders text as an audio attachment.
	Synthesize(ctx context.Context, text string) (chat.Attachment, error)
}

// NewImageSearchCommand builds the "img" command: search, dedup against the
// query's delivered set, validate, download, and reply with each accepted
// image. Syntax: `!img [3] cats` requests three results for "cats".
func NewImageSearchCommand(
	searcher Searcher,
	selector *dedup.Selector,
	downloader Downloader,
	messenger chat.Messenger,
) Spec {
	return Spec{
		Name:     "img",
		Presence: chat.PresenceTyping,
		ExpectsReply: func(_ chat.Message, args []string) bool {
			return len(args) > 0
		},
		Handler: func(ctx context.Context, msg chat.Message, args []string) error {
			count, query := parseImageArgs(args)
			if query == "" {
				return messenger.Reply(ctx, msg.ChatID, "Usage: !img [count] <query>")
			}

			candidates, err := searcher.Search(ctx, query)
			if err != nil {
				return fmt.Errorf("image search for %q: %w", query, err)
			}

			accepted := selector.GetUnique(ctx, query, count, candidates)
			if len(accepted) == 0 {
				return messenger.Reply(ctx, msg.ChatID,
					fmt.Sprintf("No new images found for %q.", query))
			}

			var sent int
			for _, url := range accepted {
				media, derr := downloader.Download(ctx, url)
				if derr != nil {
					continue
				}
				if rerr := messenger.ReplyMedia(ctx, msg.ChatID, chat.Attachment{
					Data:     media.Data,
					MimeType: media.MimeType,
				}); rerr == nil {
					sent++
				}
			}

			if sent == 0 {
				return fmt.Errorf("all %d accepted images failed to deliver", len(accepted))
			}
			return nil
		},
	}
}

// parseImageArgs splits an optional "[n]" count prefix from the query.
func parseImageArgs(args []string) (int, string) {
	count := defaultImageCount
	rest := args

	if len(args) > 0 && strings.HasPrefix(args[0], "[") && strings.HasSuffix(args[0], "]") {
		raw := strings.Trim(args[0], "[]")
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
			if count > maxImageCount {
				count = maxImageCount
			}
		}
		rest = args[1:]
	}

	return count, strings.Join(rest, " ")
}

// NewMediaCommand builds the "media" command: fetch and re-host the media
// behind an explicit link. Unlike the auto-download path, an unsupported
// link here produces a user-facing notice.
func NewMediaCommand(pl *pipeline.Pipeline) Spec {
	return Spec{
		Name:     "media",
		Presence: chat.PresenceTyping,
		ExpectsReply: func(_ chat.Message, args []string) bool {
			return len(args) > 0
		},
		Handler: func(ctx context.Context, msg chat.Message, args []string) error {
			if len(args) == 0 {
				return nil
			}
			_, err := pl.DeliverURL(ctx, msg.ChatID, args[0])
			return err
		},
	}
}

// NewSayCommand builds the "say" command: synthesize the given text (or the
// quoted message when no argument is given) as speech. The recording
// indicator is only shown when there is something to speak.
func NewSayCommand(speaker Speaker, messenger chat.Messenger) Spec {
	return Spec{
		Name:     "say",
		Presence: chat.PresenceRecording,
		ExpectsReply: func(msg chat.Message, args []string) bool {
			return len(args) > 0 || msg.QuotedText != ""
		},
		Handler: func(ctx context.Context, msg chat.Message, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				text = msg.QuotedText
			}
			if text == "" {
				return nil
			}

			att, err := speaker.Synthesize(ctx, text)
			if err != nil {
				return fmt.Errorf("speech synthesis: %w", err)
			}
			return messenger.ReplyMedia(ctx, msg.ChatID, att)
		},
	}
}
