// Package llm defines the model provider abstraction used by the analyzer.
// Providers are thin transport adapters: they take a prompt plus an output
// schema and return the raw model content, leaving interpretation to callers.
package llm

import (
	"context"
)

// Provider is implemented by model backends capable of schema-constrained
// structured generation.
type Provider interface {
	// Name returns the provider name (e.g., "openai")
	Name() string

	// GenerateStructured sends the request and returns the model output.
	// When req.Schema is set, the provider must constrain decoding so the
	// returned content conforms to the schema, or fail.
	GenerateStructured(ctx context.Context, req *Request) (*Response, error)
}

// Request represents a generation request
type Request struct {
	// System is the system prompt establishing persona and rules
	System string

	// Prompt is the user message content
	Prompt string

	// Schema defines the expected response structure (optional).
	// When provided, the provider enforces schema-constrained output.
	Schema *ResponseSchema

	// Temperature controls sampling randomness (0 uses the provider default)
	Temperature float32

	// MaxTokens caps the response length (0 uses the provider default)
	MaxTokens int
}

// ResponseSchema defines the expected response structure for structured output
type ResponseSchema struct {
	// Name is the schema name (e.g., "code_review_result")
	Name string

	// Description describes what the schema represents
	Description string

	// Schema is the JSON Schema definition as a map
	Schema map[string]interface{}

	// Strict indicates whether the model must strictly follow the schema
	Strict bool
}

// Usage contains token usage statistics
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response represents the response from a provider
type Response struct {
	// Content is the raw response content (JSON when a schema was given)
	Content string

	// Model is the actual model used for the request
	Model string

	// Usage contains token usage statistics (zero when not reported)
	Usage Usage
}
