// Package config provides configuration management for the application.
// It supports YAML configuration files with environment variable expansion
// and a small set of direct environment overrides for secrets.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reviewpilot/reviewpilot/internal/engine"
	"github.com/reviewpilot/reviewpilot/internal/engine/retry"
	"github.com/reviewpilot/reviewpilot/internal/llm/openai"
	"github.com/reviewpilot/reviewpilot/internal/platform/gitlab"
	"github.com/reviewpilot/reviewpilot/internal/review"
	"github.com/reviewpilot/reviewpilot/pkg/logger"
)

// Default configuration values
const (
	defaultDatabasePath    = "./data/reviewpilot.db"
	defaultGitLabURL       = "https://gitlab.com"
	defaultModel           = "gpt-4o"
	defaultMaxConcurrent   = 3
	defaultPollInterval    = 10
	defaultTaskTimeoutMins = 30
	defaultRetentionDays   = 30
	defaultMaxRetries      = 3
	defaultRetryDelay      = 60
	defaultMaxBackoffMins  = 30
	defaultMaxFiles        = 50
	defaultMaxLinesPerFile = 2000
	defaultStatusName      = "reviewpilot"
)

// Config represents the complete application configuration.
// The configuration is read once at startup; the engine takes an
// immutable snapshot and never observes later changes.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	GitLab    GitLabConfig    `yaml:"gitlab"`
	LLM       LLMConfig       `yaml:"llm"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Review    ReviewConfig    `yaml:"review"`
	Logging   logger.Config   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// DatabaseConfig holds SQLite configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GitLabConfig holds the GitLab connection settings
type GitLabConfig struct {
	URL                string `yaml:"url"`                  // for self-hosted instances
	Token              string `yaml:"token"`                // access token
	WebhookSecret      string `yaml:"webhook_secret"`       // webhook secret token for validation
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // skip SSL verification for self-signed certs
}

// LLMConfig holds the model provider settings
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"` // for OpenAI-compatible endpoints
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// SchedulerConfig holds task scheduling settings
type SchedulerConfig struct {
	MaxConcurrent      int `yaml:"max_concurrent"`       // maximum parallel reviews
	PollInterval       int `yaml:"poll_interval"`        // queue poll interval in seconds
	TaskTimeoutMinutes int `yaml:"task_timeout_minutes"` // stuck-task threshold in minutes
	RetentionDays      int `yaml:"retention_days"`       // completed task retention
	MaxRetries         int `yaml:"max_retries"`          // attempts per task
	RetryDelay         int `yaml:"retry_delay"`          // first retry delay in seconds
	MaxBackoffMinutes  int `yaml:"max_backoff_minutes"`  // backoff cap in minutes
}

// ReviewConfig holds review behavior settings
type ReviewConfig struct {
	OutputLanguage   string   `yaml:"output_language"`    // ISO 639-1 code, e.g. en, zh-cn
	InlineComments   bool     `yaml:"inline_comments"`    // post positioned comments
	Blocking         bool     `yaml:"blocking"`           // fail the commit status on findings
	FailureThreshold string   `yaml:"failure_threshold"`  // minimum severity counted as a finding
	StatusName       string   `yaml:"status_name"`        // commit status context name
	SkipPatterns     []string `yaml:"skip_patterns"`      // glob patterns excluded from review
	MaxFiles         int      `yaml:"max_files"`          // files per review cap
	MaxLinesPerFile  int      `yaml:"max_lines_per_file"` // diff lines per file cap
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:  "0.0.0.0",
			Port:  8080,
			Debug: false,
		},
		Database: DatabaseConfig{
			Path: defaultDatabasePath,
		},
		GitLab: GitLabConfig{
			URL: defaultGitLabURL,
		},
		LLM: LLMConfig{
			Model: defaultModel,
		},
		Scheduler: SchedulerConfig{
			MaxConcurrent:      defaultMaxConcurrent,
			PollInterval:       defaultPollInterval,
			TaskTimeoutMinutes: defaultTaskTimeoutMins,
			RetentionDays:      defaultRetentionDays,
			MaxRetries:         defaultMaxRetries,
			RetryDelay:         defaultRetryDelay,
			MaxBackoffMinutes:  defaultMaxBackoffMins,
		},
		Review: ReviewConfig{
			InlineComments:   true,
			Blocking:         false,
			FailureThreshold: string(review.SeverityCritical),
			StatusName:       defaultStatusName,
			SkipPatterns: []string{
				"*.lock", "*.sum", "*.min.js", "*.map",
				"vendor/**", "node_modules/**",
			},
			MaxFiles:        defaultMaxFiles,
			MaxLinesPerFile: defaultMaxLinesPerFile,
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 5,
			Compress:   false,
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults.
// ${VAR} and ${VAR:-default} references in the file are expanded from
// the environment before parsing.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadOrDefault loads the file when it exists and falls back to the
// defaults plus environment overrides otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnvOverrides()
		return cfg, nil
	}
	return Load(path)
}

// envVarPattern matches ${VAR_NAME} references only. Bare $VAR is left
// alone so tokens and hashes containing $ survive expansion.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]

		parts := strings.SplitN(name, ":-", 2)
		name = parts[0]

		if value := os.Getenv(name); value != "" {
			return value
		}
		if len(parts) > 1 {
			return parts[1]
		}
		return ""
	})
}

// applyEnvOverrides lets secrets come from the environment so they never
// need to live in the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REVIEWPILOT_GITLAB_TOKEN"); v != "" {
		c.GitLab.Token = v
	}
	if v := os.Getenv("REVIEWPILOT_WEBHOOK_SECRET"); v != "" {
		c.GitLab.WebhookSecret = v
	}
	if v := os.Getenv("REVIEWPILOT_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// GitLabClientConfig maps the GitLab section onto the platform client
func (c *Config) GitLabClientConfig() gitlab.Config {
	return gitlab.Config{
		Token:              c.GitLab.Token,
		BaseURL:            c.GitLab.URL,
		InsecureSkipVerify: c.GitLab.InsecureSkipVerify,
	}
}

// OpenAIClientConfig maps the LLM section onto the provider client
func (c *Config) OpenAIClientConfig() openai.Config {
	return openai.Config{
		APIKey:  c.LLM.APIKey,
		BaseURL: c.LLM.BaseURL,
		Model:   c.LLM.Model,
	}
}

// EngineConfig maps the scheduler and review sections onto the engine's
// immutable snapshot.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Scheduler: engine.SchedulerConfig{
			PollInterval:       time.Duration(c.Scheduler.PollInterval) * time.Second,
			CleanupInterval:    time.Hour,
			MaxConcurrentTasks: c.Scheduler.MaxConcurrent,
			TaskTimeout:        time.Duration(c.Scheduler.TaskTimeoutMinutes) * time.Minute,
			RetentionDays:      c.Scheduler.RetentionDays,
			Policy: retry.Policy{
				MaxRetries: c.Scheduler.MaxRetries,
				BaseDelay:  time.Duration(c.Scheduler.RetryDelay) * time.Second,
				Multiplier: 2,
				MaxBackoff: time.Duration(c.Scheduler.MaxBackoffMinutes) * time.Minute,
			},
		},
		Review: review.Config{
			Filter: review.FilterConfig{
				SkipGlobs:       c.Review.SkipPatterns,
				MaxFiles:        c.Review.MaxFiles,
				MaxLinesPerFile: c.Review.MaxLinesPerFile,
			},
			InlineComments:   c.Review.InlineComments,
			Blocking:         c.Review.Blocking,
			FailureThreshold: review.Severity(c.Review.FailureThreshold),
			StatusName:       c.Review.StatusName,
		},
		Analyzer: review.AnalyzerConfig{
			Temperature:    c.LLM.Temperature,
			MaxTokens:      c.LLM.MaxTokens,
			OutputLanguage: c.Review.OutputLanguage,
		},
	}
}
