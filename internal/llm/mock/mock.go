// Package mock implements a mock model provider for testing.
// It returns configurable responses and records every request it receives.
package mock

import (
	"context"
	"sync"

	"github.com/reviewpilot/reviewpilot/internal/llm"
)

// ClientName is the identifier for the mock provider
const ClientName = "mock"

// Provider implements llm.Provider with scripted behavior
type Provider struct {
	mu sync.Mutex

	// Response is returned by GenerateStructured when Err is nil
	Response *llm.Response

	// Err is returned by GenerateStructured when set
	Err error

	// Requests records every request received, in order
	Requests []*llm.Request
}

// New creates a mock provider returning the given content
func New(content string) *Provider {
	return &Provider{
		Response: &llm.Response{
			Content: content,
			Model:   "mock-model",
		},
	}
}

// NewWithError creates a mock provider that always fails
func NewWithError(err error) *Provider {
	return &Provider{Err: err}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return ClientName
}

// GenerateStructured records the request and returns the scripted outcome
func (p *Provider) GenerateStructured(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Response, nil
}

// CallCount returns how many requests have been received
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
