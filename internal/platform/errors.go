package platform

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrInvalidWebhookToken marks a webhook delivery whose secret token
// did not match the configured one. Handlers match it with errors.Is
// to answer 401 instead of 400.
var ErrInvalidWebhookToken = errors.New("invalid webhook token")

// Error represents a platform API error
type Error struct {
	// Platform is the platform name that produced the error
	Platform string

	// Operation is the API operation that failed
	Operation string

	// StatusCode is the HTTP status code when known (0 otherwise)
	StatusCode int

	// Message is the error message
	Message string

	// Err is the underlying error (if any)
	Err error

	// RetryAfter carries the server-suggested wait on throttled
	// requests, when the response included one
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s.%s] %s: %v", e.Platform, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s.%s] %s", e.Platform, e.Operation, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a platform error without an HTTP status
func NewError(platform, operation, message string, err error) *Error {
	return &Error{
		Platform:  platform,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// IsNotFound reports whether the error is a 404 from the platform
func IsNotFound(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound
}

// IsRateLimited reports whether the error is a throttling response,
// returning the server-suggested wait when present.
func IsRateLimited(err error) (time.Duration, bool) {
	var perr *Error
	if errors.As(err, &perr) && perr.StatusCode == http.StatusTooManyRequests {
		return perr.RetryAfter, true
	}
	return 0, false
}

// IsRetryable reports whether the operation is worth retrying.
// Throttling, server errors, and transport failures qualify;
// client errors do not.
func IsRetryable(err error) bool {
	var perr *Error
	if !errors.As(err, &perr) {
		return false
	}
	switch {
	case perr.StatusCode == http.StatusTooManyRequests:
		return true
	case perr.StatusCode >= 500:
		return true
	case perr.StatusCode == 0:
		// No HTTP status means the request never completed
		return true
	default:
		return false
	}
}
