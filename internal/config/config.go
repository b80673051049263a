// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// Completion provider settings. APIKey is required; BaseURL is optional
	// and lets the same client front any OpenAI-compatible endpoint.
	APIKey  string
	BaseURL string
	Model   string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", ""),
		APIKey:      getEnv("OPENAI_API_KEY", ""),
		BaseURL:     getEnv("OPENAI_BASE_URL", ""),
		Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// A missing provider key or database path is a startup error, never a
// runtime one.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is not set")
	}
	if c.Model == "" {
		return fmt.Errorf("OPENAI_MODEL cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
