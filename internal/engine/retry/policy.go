// Package retry implements error classification and backoff scheduling
// for failed review tasks. The policy is pure: it performs no I/O and
// holds no mutable state.
package retry

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/reviewpilot/reviewpilot/internal/llm"
	"github.com/reviewpilot/reviewpilot/internal/platform"
)

// ErrorClass categorizes a failure for retry decisions
type ErrorClass string

const (
	// ClassTransient covers network and timeout failures worth retrying
	ClassTransient ErrorClass = "transient"

	// ClassRateLimit covers provider throttling, retried after a delay
	ClassRateLimit ErrorClass = "rate_limit"

	// ClassPermanent covers auth and configuration failures, never retried
	ClassPermanent ErrorClass = "permanent"

	// ClassUnknown covers everything else, treated as non-retryable
	ClassUnknown ErrorClass = "unknown"
)

// Classify inspects the error chain and assigns a class.
// Typed errors from the model and platform layers are checked first;
// message inspection is the fallback for untyped errors.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var llmRate *llm.RateLimitError
	if errors.As(err, &llmRate) {
		return ClassRateLimit
	}
	if _, ok := platform.IsRateLimited(err); ok {
		return ClassRateLimit
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		if provErr.Retryable {
			return ClassTransient
		}
		return ClassPermanent
	}

	var platErr *platform.Error
	if errors.As(err, &platErr) {
		if platform.IsRetryable(err) {
			return ClassTransient
		}
		return ClassPermanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	return classifyMessage(err.Error())
}

// classifyMessage assigns a class from the error text
func classifyMessage(msg string) ErrorClass {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"),
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "429"):
		return ClassRateLimit
	case strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "authentication"),
		strings.Contains(lower, "invalid token"),
		strings.Contains(lower, "401"),
		strings.Contains(lower, "403"):
		return ClassPermanent
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "deadline exceeded"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "temporary"),
		strings.Contains(lower, "unexpected eof"):
		return ClassTransient
	default:
		return ClassUnknown
	}
}

// IsRetryable reports whether the error class permits another attempt
func IsRetryable(err error) bool {
	switch Classify(err) {
	case ClassTransient, ClassRateLimit:
		return true
	default:
		return false
	}
}

// RetryAfter extracts the provider-suggested wait from a throttling
// error, when one was supplied.
func RetryAfter(err error) time.Duration {
	var llmRate *llm.RateLimitError
	if errors.As(err, &llmRate) {
		return llmRate.RetryAfter
	}
	if after, ok := platform.IsRateLimited(err); ok {
		return after
	}
	return 0
}

// Policy holds the backoff parameters
type Policy struct {
	// MaxRetries is the maximum number of attempts per task
	MaxRetries int

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration

	// Multiplier grows the delay between successive retries
	Multiplier float64

	// MaxBackoff caps the computed delay
	MaxBackoff time.Duration
}

// DefaultPolicy returns the standard backoff parameters
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Minute,
		Multiplier: 2,
		MaxBackoff: 30 * time.Minute,
	}
}

// ShouldRetry decides whether a failed attempt gets another try.
// attemptNumber is the number of the attempt that just failed (1-based).
func (p Policy) ShouldRetry(attemptNumber int, err error) bool {
	return attemptNumber < p.MaxRetries && IsRetryable(err)
}

// Delay computes the capped exponential backoff for a retry.
// retryCount is zero-based: the first retry uses retryCount=0.
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(retryCount))
	if delay > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(delay)
}

// NextRetryTime computes when a failed task becomes eligible again.
// A provider-supplied Retry-After extends, but never shortens, the wait.
func (p Policy) NextRetryTime(now time.Time, retryCount int, err error) time.Time {
	delay := p.Delay(retryCount)
	if after := RetryAfter(err); after > delay {
		delay = after
	}
	return now.Add(delay)
}
