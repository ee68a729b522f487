package config

import (
	"fmt"
	"os"
	"strings"
)

// APIConfig holds game API client configuration
type APIConfig struct {
	// Base URL for the game API
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// Path to the file holding the agent bearer token
	AgentTokenFile string `mapstructure:"agent_token_file"`

	// Path to the file holding the account bearer token
	AccountTokenFile string `mapstructure:"account_token_file"`

	// Rate limiting settings
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Retry configuration
	Retry RetryConfig `mapstructure:"retry"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Maximum requests per second
	Requests int `mapstructure:"requests" validate:"min=1"`

	// Burst size for token bucket
	Burst int `mapstructure:"burst" validate:"min=1"`
}

// RetryConfig holds retry configuration for failed requests
type RetryConfig struct {
	// Maximum number of attempts per request
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`

	// Baseline backoff between attempts
	BackoffBaseMillis int `mapstructure:"backoff_base_millis" validate:"min=0"`
}

// LoadAgentToken reads the agent token from the configured file
func (c *APIConfig) LoadAgentToken() (string, error) {
	if c.AgentTokenFile == "" {
		return "", fmt.Errorf("no agent token file configured")
	}
	data, err := os.ReadFile(c.AgentTokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to read agent token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("agent token file %s is empty", c.AgentTokenFile)
	}
	return token, nil
}
