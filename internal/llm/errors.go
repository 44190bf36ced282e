package llm

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions
var (
	// ErrModelNotAvailable indicates the requested model is not available
	ErrModelNotAvailable = errors.New("model not available")

	// ErrTimeout indicates the request timed out
	ErrTimeout = errors.New("request timeout")

	// ErrInvalidResponse indicates the response could not be parsed
	// against the requested schema
	ErrInvalidResponse = errors.New("invalid response format")

	// ErrEmptyResponse indicates the provider returned no choices
	ErrEmptyResponse = errors.New("empty response from provider")
)

// ProviderError represents an error from a model provider
type ProviderError struct {
	// Provider is the name of the provider that produced the error
	Provider string

	// Operation is the operation that failed (e.g., "generate")
	Operation string

	// StatusCode is the HTTP status code when known (0 otherwise)
	StatusCode int

	// Message is the error message
	Message string

	// Err is the underlying error (if any)
	Err error

	// Retryable indicates whether the operation can be retried
	Retryable bool
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s.%s] %s: %v", e.Provider, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s.%s] %s", e.Provider, e.Operation, e.Message)
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new non-retryable ProviderError
func NewProviderError(provider, operation, message string, err error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// NewRetryableError creates a new retryable ProviderError
func NewRetryableError(provider, operation, message string, err error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Operation: operation,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// RateLimitError indicates the provider throttled the request.
// RetryAfter carries the provider-suggested wait when known.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("[%s] rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("[%s] rate limited", e.Provider)
}

// Unwrap returns the underlying error
func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}
