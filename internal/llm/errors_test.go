package llm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &RateLimitError{Provider: "openai"}, true},
		{"retryable provider error", NewRetryableError("openai", "generate", "503", nil), true},
		{"non-retryable provider error", NewProviderError("openai", "generate", "401", nil), false},
		{"wrapped rate limit", fmt.Errorf("call failed: %w", &RateLimitError{Provider: "openai"}), true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestProviderError_Error(t *testing.T) {
	err := NewProviderError("openai", "generate", "api error (400)", errors.New("bad request"))
	assert.Equal(t, "[openai.generate] api error (400): bad request", err.Error())

	bare := NewProviderError("openai", "generate", "no choices returned", nil)
	assert.Equal(t, "[openai.generate] no choices returned", bare.Error())
}

func TestRateLimitError_Error(t *testing.T) {
	err := &RateLimitError{Provider: "openai", RetryAfter: 30 * time.Second}
	assert.Contains(t, err.Error(), "retry after 30s")

	bare := &RateLimitError{Provider: "openai"}
	assert.Equal(t, "[openai] rate limited", bare.Error())
}

func TestProviderError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewRetryableError("openai", "generate", "request failed", inner)
	assert.ErrorIs(t, err, inner)
}
