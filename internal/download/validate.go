package download

import (
	"context"
	"net/http"
	"strings"
)

// ValidationResult classifies a media candidate.
type ValidationResult int

const (
	// Valid means the candidate is reachable and of the expected type.
	Valid ValidationResult = iota
	// InvalidType means the candidate is reachable but the wrong content type.
	InvalidType
	// Unreachable means the candidate could not be fetched.
	Unreachable
)

// String returns a readable name for logging.
func (r ValidationResult) String() string {
	switch r {
	case Valid:
		return "valid"
	case InvalidType:
		return "invalid_type"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Validator checks media candidates before they are accepted. It is the
// single content-type check shared by the search dedup scan and the
// download path.
type Validator interface {
	Validate(ctx context.Context, url string, wantTypePrefix string) ValidationResult
}

// Validate issues a HEAD request and classifies the candidate. A reachable
// response whose Content-Type does not start with wantTypePrefix (e.g.
// "image/") is InvalidType; request failures and non-2xx statuses are
// Unreachable.
func (c *Client) Validate(ctx context.Context, url string, wantTypePrefix string) ValidationResult {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		return Unreachable
	}

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return Unreachable
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Unreachable
	}

	contentType := resp.Header.Get("Content-Type")
	if wantTypePrefix != "" && !strings.HasPrefix(contentType, wantTypePrefix) {
		return InvalidType
	}

	return Valid
}
