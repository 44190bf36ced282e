// Package openai implements the llm.Provider interface for OpenAI and
// OpenAI-compatible endpoints using schema-constrained JSON output.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/reviewpilot/reviewpilot/internal/llm"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

const providerName = "openai"

// Config holds provider connection settings
type Config struct {
	// APIKey authenticates against the endpoint
	APIKey string

	// BaseURL overrides the default endpoint for OpenAI-compatible services
	BaseURL string

	// Model is the model identifier to request
	Model string
}

// Client implements llm.Provider backed by the OpenAI chat completions API
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// New creates a provider client for OpenAI or an OpenAI-compatible endpoint
func New(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("llm." + providerName),
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return providerName
}

// GenerateStructured sends the request with a JSON-schema response format so
// the endpoint constrains decoding to the requested shape.
func (c *Client) GenerateStructured(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
	}

	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	if req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema.Schema)
		if err != nil {
			return nil, llm.NewProviderError(providerName, "generate", "failed to encode schema", err)
		}
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.Schema.Name,
				Description: req.Schema.Description,
				Schema:      rawSchema(schemaJSON),
				Strict:      req.Schema.Strict,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, c.mapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.NewProviderError(providerName, "generate", "no choices returned", llm.ErrEmptyResponse)
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("Model response received",
		zap.String("model", resp.Model),
		zap.Int("content_length", len(content)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return &llm.Response{
		Content: content,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// mapError translates transport failures into the provider error taxonomy
func (c *Client) mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewRetryableError(providerName, "generate", "request timed out", llm.ErrTimeout)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return &llm.RateLimitError{Provider: providerName, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return llm.NewRetryableError(providerName, "generate",
				fmt.Sprintf("server error (%d)", apiErr.HTTPStatusCode), err)
		default:
			return llm.NewProviderError(providerName, "generate",
				fmt.Sprintf("api error (%d)", apiErr.HTTPStatusCode), err)
		}
	}

	// Network-level failures are worth retrying
	return llm.NewRetryableError(providerName, "generate", "request failed", err)
}

// rawSchema adapts pre-encoded JSON to the json.Marshaler the SDK expects
type rawSchema []byte

func (r rawSchema) MarshalJSON() ([]byte, error) {
	return r, nil
}
