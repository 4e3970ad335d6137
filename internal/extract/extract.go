// Package extract resolves shared-link URLs into direct media URLs or
// inline buffers via platform-specific resolvers behind a uniform contract.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// DefaultTimeout is the global extraction timeout raced against every
// resolver call.
const DefaultTimeout = 20 * time.Second

// Platform identifies a supported media source.
type Platform string

const (
	// PlatformImageHost covers image-hosting share links.
	PlatformImageHost Platform = "image_host"
	// PlatformShortVideo covers short-video share links.
	PlatformShortVideo Platform = "short_video"
	// PlatformSocialVideo covers social-network video links.
	PlatformSocialVideo Platform = "social_video"
	// PlatformAudioHost covers audio-hosting share links.
	PlatformAudioHost Platform = "audio_host"
)

// Resolved is one direct media item produced by extraction: either a direct
// URL or an inline buffer with its mime type.
type Resolved struct {
	URL      string
	Data     string // base64 payload when the resolver returns a buffer
	MimeType string
}

// Resolver turns a shared-link URL into one or more resolved media items.
// Each resolver is an independent remote call with its own semantics; the
// service wraps it with the global extraction timeout.
type Resolver interface {
	Resolve(ctx context.Context, url string) ([]Resolved, error)
}

// Error tags an extraction failure with its platform and a truncated URL
// for diagnostics. Extraction failures are not retried at this layer.
type Error struct {
	Platform Platform
	URL      string
	Timeout  bool
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("extraction timed out for %s url %s", e.Platform, truncateURL(e.URL))
	}
	return fmt.Sprintf("extraction failed for %s url %s: %v", e.Platform, truncateURL(e.URL), e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout checks whether an error is an extraction timeout.
func IsTimeout(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Timeout
}

// binding associates a URL pattern with its platform resolver. Order matters:
// the first matching pattern wins.
type binding struct {
	platform Platform
	pattern  *regexp.Regexp
	resolver Resolver
}

// Service routes URLs to platform resolvers.
type Service struct {
	bindings []binding
	bypass   []*regexp.Regexp
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout sets the global extraction timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBinding appends a platform pattern and its resolver. Bindings are
// consulted in registration order.
func WithBinding(platform Platform, pattern string, resolver Resolver) Option {
	return func(s *Service) {
		s.bindings = append(s.bindings, binding{
			platform: platform,
			pattern:  regexp.MustCompile(pattern),
			resolver: resolver,
		})
	}
}

// WithBypass appends a direct-media-CDN hostname pattern. Matching URLs skip
// extraction entirely and pass through as already resolved.
func WithBypass(pattern string) Option {
	return func(s *Service) {
		s.bypass = append(s.bypass, regexp.MustCompile(pattern))
	}
}

// NewService creates an extraction service.
func NewService(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		timeout: DefaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detect matches the URL against the ordered platform patterns. The second
// return is false when no platform matches.
func (s *Service) Detect(url string) (Platform, bool) {
	for _, b := range s.bindings {
		if b.pattern.MatchString(url) {
			return b.platform, true
		}
	}
	return "", false
}

// IsDirect reports whether the URL already points at a known direct-media
// CDN and needs no extraction.
func (s *Service) IsDirect(url string) bool {
	for _, p := range s.bypass {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

// Resolve runs the matching platform resolver under the global extraction
// timeout. Direct CDN URLs bypass resolution. A timeout surfaces as a tagged
// extraction failure, never a silent drop.
func (s *Service) Resolve(ctx context.Context, url string) ([]Resolved, error) {
	if s.IsDirect(url) {
		return []Resolved{{URL: url}}, nil
	}

	var match *binding
	for i := range s.bindings {
		if s.bindings[i].pattern.MatchString(url) {
			match = &s.bindings[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no platform matches url %s", truncateURL(url))
	}

	resolveCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := match.resolver.Resolve(resolveCtx, url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || resolveCtx.Err() == context.DeadlineExceeded {
			return nil, &Error{Platform: match.platform, URL: url, Timeout: true, Err: err}
		}
		return nil, &Error{Platform: match.platform, URL: url, Err: err}
	}
	if len(items) == 0 {
		return nil, &Error{Platform: match.platform, URL: url, Err: errors.New("resolver returned no media")}
	}

	return items, nil
}

// truncateURL shortens long URLs for diagnostics.
func truncateURL(url string) string {
	const maxLen = 80
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen] + "..."
}
