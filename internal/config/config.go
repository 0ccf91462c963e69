package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config models boardflow.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Extraction struct {
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"`
		MaxTokens int    `yaml:"max_tokens"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"extraction"`
	RateLimit struct {
		PerKeyRPS float64 `yaml:"per_key_rps"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Board struct {
		// Columns seeded into every new workspace, in board order.
		Columns []SeedColumn `yaml:"columns"`
	} `yaml:"board"`
}

type SeedColumn struct {
	Name   string `yaml:"name"`
	Status string `yaml:"status"`
}

var validStatuses = map[string]bool{
	"backlog":     true,
	"todo":        true,
	"in_progress": true,
	"done":        true,
	"canceled":    true,
}

// ValidStatus reports whether s is one of the board statuses.
func ValidStatus(s string) bool { return validStatuses[s] }

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v1"
	cfg.Extraction.Model = "claude-sonnet-4-20250514"
	cfg.Extraction.BaseURL = "https://api.anthropic.com/v1/messages"
	cfg.Extraction.MaxTokens = 1024
	cfg.Extraction.APIKeyEnv = "ANTHROPIC_API_KEY"
	cfg.RateLimit.PerKeyRPS = 5
	cfg.RateLimit.Burst = 10
	cfg.Board.Columns = []SeedColumn{
		{Name: "Backlog", Status: "backlog"},
		{Name: "Todo", Status: "todo"},
		{Name: "In Progress", Status: "in_progress"},
		{Name: "Done", Status: "done"},
		{Name: "Canceled", Status: "canceled"},
	}
	return cfg
}

// Load reads config from path, falling back to defaults when absent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates YAML config on top of the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Extraction.Model == "" {
		return fmt.Errorf("config.extraction.model is required")
	}
	if c.Extraction.MaxTokens <= 0 {
		return fmt.Errorf("config.extraction.max_tokens must be positive")
	}
	if c.RateLimit.PerKeyRPS <= 0 {
		return fmt.Errorf("config.rate_limit.per_key_rps must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("config.rate_limit.burst must be positive")
	}
	if len(c.Board.Columns) == 0 {
		return fmt.Errorf("config.board.columns is required")
	}
	for _, col := range c.Board.Columns {
		if col.Name == "" {
			return fmt.Errorf("config.board.columns contains a column without a name")
		}
		if !ValidStatus(col.Status) {
			return fmt.Errorf("config.board.columns: unknown status %q for column %s", col.Status, col.Name)
		}
	}
	return nil
}

// ExtractionAPIKey resolves the backend API key from the configured env var.
func (c *Config) ExtractionAPIKey() string {
	return os.Getenv(c.Extraction.APIKeyEnv)
}
