package config

import (
	"fmt"
	"net/url"

	"github.com/reviewpilot/reviewpilot/internal/review"
	"github.com/reviewpilot/reviewpilot/pkg/errors"
)

// Validate checks the configuration for values that would prevent the
// service from running. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Database.Path == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "database.path must not be empty")
	}

	if c.GitLab.Token == "" {
		return errors.New(errors.ErrCodeConfigInvalid,
			"gitlab.token is required (or set REVIEWPILOT_GITLAB_TOKEN)")
	}
	if c.GitLab.URL != "" {
		u, err := url.Parse(c.GitLab.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("gitlab.url is not a valid URL: %q", c.GitLab.URL))
		}
	}

	if c.LLM.APIKey == "" {
		return errors.New(errors.ErrCodeConfigInvalid,
			"llm.api_key is required (or set REVIEWPILOT_LLM_API_KEY)")
	}
	if c.LLM.Model == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "llm.model must not be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature))
	}

	if c.Scheduler.MaxConcurrent <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "scheduler.max_concurrent must be positive")
	}
	if c.Scheduler.PollInterval <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "scheduler.poll_interval must be positive")
	}
	if c.Scheduler.MaxRetries < 1 {
		return errors.New(errors.ErrCodeConfigInvalid, "scheduler.max_retries must be at least 1")
	}

	if c.Review.FailureThreshold != "" && !review.Severity(c.Review.FailureThreshold).Valid() {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("review.failure_threshold must be one of suggestion, minor, major, critical, got %q",
				c.Review.FailureThreshold))
	}

	return nil
}
