package pipeline

import (
	"errors"
	"fmt"

	"github.com/voxhall/mediabot/internal/download"
	"github.com/voxhall/mediabot/internal/extract"
)

// Pipeline failure kinds.
var (
	// ErrUnsupportedMedia indicates the URL matched no known platform.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrTooManyItems indicates extraction resolved more sub-URLs than the
	// per-transaction ceiling allows.
	ErrTooManyItems = errors.New("too many media items in link")
)

// User-facing failure notices. Only user-actionable failures produce one;
// transport/internal errors are logged and swallowed so a failed background
// enrichment does not look like a broken conversation.
const (
	noticeUnsupported = "Sorry, I can't fetch media from that link."
	noticeOversize    = "That media file is too large for me to fetch."
	noticeTooMany     = "That link contains more media items than I can handle at once."
	noticeProcessing  = "Sorry, I couldn't fetch that media. Please try again."
)

// UserNotice maps a total-failure error to a user-facing message. The second
// return is false for transport/internal errors, which must stay silent
// toward the user.
func UserNotice(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrUnsupportedMedia):
		return noticeUnsupported, true
	case errors.Is(err, ErrTooManyItems):
		return noticeTooMany, true
	case download.IsOversize(err):
		return noticeOversize, true
	case extract.IsTimeout(err):
		return noticeProcessing, true
	default:
		var de *DownloadError
		if errors.As(err, &de) {
			return noticeProcessing, true
		}
		var ee *extract.Error
		if errors.As(err, &ee) {
			return noticeProcessing, true
		}
		return "", false
	}
}

// DownloadError tags a sub-URL failure that came from the fetch itself, as
// opposed to the send leg. Fetch failures are user-actionable (the link is
// bad or the host is down); send failures are our transport's problem.
type DownloadError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ProcessingError is the generic catch-all, logged with its transaction id.
type ProcessingError struct {
	TransactionID string
	Err           error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.TransactionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}
