package edgar

import (
	"errors"
	"fmt"
	"time"
)

// EDGAR-specific errors.
var (
	// ErrMissingUserAgent indicates no User-Agent was configured.
	ErrMissingUserAgent = errors.New("edgar: a User-Agent identifying the requester is required")

	// ErrEmptyDocument indicates the archive returned no content.
	ErrEmptyDocument = errors.New("edgar: empty document")

	// ErrDocumentTooLarge indicates a body over the download size limit.
	ErrDocumentTooLarge = errors.New("edgar: document too large")
)

// RateLimitError is returned when the archive keeps answering 429.
type RateLimitError struct {
	RetryAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("edgar: rate limited, retry at %s", e.RetryAt.Format(time.RFC3339))
}

// APIError represents a non-success archive response.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("edgar: HTTP %d (URL: %s)", e.StatusCode, e.URL)
}

// IsNotFound checks if the error indicates a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// isRetryable reports whether a status code is worth retrying.
func isRetryable(status int) bool {
	return status == 429 || status >= 500
}
