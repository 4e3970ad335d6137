package extract

import (
	"log/slog"
	"net/http"
	"time"
)

// NewDefaultService wires the stock platform bindings and direct-CDN bypass
// patterns. Patterns are consulted in order; first match wins.
func NewDefaultService(logger *slog.Logger, timeout time.Duration, client *http.Client) *Service {
	imageResolver := NewImageResolver(client)
	videoResolver := NewVideoResolver(client)
	audioResolver := NewAudioResolver(client)

	return NewService(logger,
		WithTimeout(timeout),

		WithBinding(PlatformImageHost, `https?://(www\.)?(imgur\.com|postimg\.cc|ibb\.co)/`, imageResolver),
		WithBinding(PlatformShortVideo, `https?://((www|vm|vt)\.)?tiktok\.com/`, videoResolver),
		WithBinding(PlatformShortVideo, `https?://(www\.)?youtube\.com/shorts/`, videoResolver),
		WithBinding(PlatformSocialVideo, `https?://(www\.)?(twitter\.com|x\.com)/\w+/status/`, videoResolver),
		WithBinding(PlatformSocialVideo, `https?://(www\.)?instagram\.com/(p|reel|tv)/`, videoResolver),
		WithBinding(PlatformSocialVideo, `https?://(www\.)?facebook\.com/.+/videos/`, videoResolver),
		WithBinding(PlatformAudioHost, `https?://(www\.|on\.)?soundcloud\.com/`, audioResolver),

		// Direct-media CDNs need no extraction.
		WithBypass(`https?://i\.imgur\.com/`),
		WithBypass(`https?://pbs\.twimg\.com/`),
		WithBypass(`https?://video\.twimg\.com/`),
		WithBypass(`https?://[a-z0-9-]+\.cdninstagram\.com/`),
		WithBypass(`https?://i\.redd\.it/`),
	)
}
