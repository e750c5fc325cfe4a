// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port                string
	DBPath              string
	LinearAPIKey        string
	LinearWebhookSecret string
	LinearEndpoint      string
	V0APIKey            string
	V0BaseURL           string
	VercelToken         string
	VercelBaseURL       string
	ProcessTimeout      time.Duration
	SessionTTL          time.Duration
	CleanupInterval     time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DBPath:              getEnv("DB_PATH", "./data/agent.db"),
		LinearAPIKey:        getEnv("LINEAR_API_KEY", ""),
		LinearWebhookSecret: getEnv("LINEAR_WEBHOOK_SECRET", ""),
		LinearEndpoint:      getEnv("LINEAR_ENDPOINT", ""),
		V0APIKey:            getEnv("V0_API_KEY", ""),
		V0BaseURL:           getEnv("V0_BASE_URL", ""),
		VercelToken:         getEnv("VERCEL_TOKEN", ""),
		VercelBaseURL:       getEnv("VERCEL_BASE_URL", ""),
		ProcessTimeout:      getEnvDuration("PROCESS_TIMEOUT", 5*time.Minute),
		SessionTTL:          getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		CleanupInterval:     getEnvDuration("CLEANUP_INTERVAL", time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.LinearAPIKey == "" {
		return fmt.Errorf("LINEAR_API_KEY is required")
	}
	if c.LinearWebhookSecret == "" {
		return fmt.Errorf("LINEAR_WEBHOOK_SECRET is required")
	}
	if c.V0APIKey == "" {
		return fmt.Errorf("V0_API_KEY is required")
	}
	if c.VercelToken == "" {
		return fmt.Errorf("VERCEL_TOKEN is required")
	}
	if c.ProcessTimeout <= 0 {
		return fmt.Errorf("PROCESS_TIMEOUT must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
