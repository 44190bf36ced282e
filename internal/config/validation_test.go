package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.GitLab.Token = "glpat-test"
	cfg.LLM.APIKey = "sk-test"
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantMsg: "server.port",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantMsg: "database.path",
		},
		{
			name:    "missing gitlab token",
			mutate:  func(c *Config) { c.GitLab.Token = "" },
			wantMsg: "gitlab.token",
		},
		{
			name:    "malformed gitlab url",
			mutate:  func(c *Config) { c.GitLab.URL = "not a url" },
			wantMsg: "gitlab.url",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.LLM.APIKey = "" },
			wantMsg: "llm.api_key",
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.LLM.Model = "" },
			wantMsg: "llm.model",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.LLM.Temperature = 3 },
			wantMsg: "llm.temperature",
		},
		{
			name:    "non-positive concurrency",
			mutate:  func(c *Config) { c.Scheduler.MaxConcurrent = 0 },
			wantMsg: "scheduler.max_concurrent",
		},
		{
			name:    "non-positive poll interval",
			mutate:  func(c *Config) { c.Scheduler.PollInterval = -1 },
			wantMsg: "scheduler.poll_interval",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Scheduler.MaxRetries = 0 },
			wantMsg: "scheduler.max_retries",
		},
		{
			name:    "unknown severity threshold",
			mutate:  func(c *Config) { c.Review.FailureThreshold = "blocker" },
			wantMsg: "review.failure_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_EmptyThresholdAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Review.FailureThreshold = ""
	assert.NoError(t, cfg.Validate(), "empty threshold falls back to the orchestrator default")
}
