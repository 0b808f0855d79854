// Package config holds all verdict configuration.
// Configuration is read from .verdict/config.yaml with environment
// variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all verdict configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM gateway configuration
	LLM LLMConfig `yaml:"llm"`

	// Verification flow configuration
	Verification VerificationConfig `yaml:"verification"`

	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the language model gateway.
type LLMConfig struct {
	Provider string `yaml:"provider"` // anthropic, simulator
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// MockMode forces the offline simulator regardless of provider.
	MockMode bool `yaml:"mock_mode"`
}

// VerificationConfig configures the intent verification state machine.
type VerificationConfig struct {
	// MaxClarificationRounds caps the intent clarification loop.
	// 0 means unbounded, matching the original behavior.
	MaxClarificationRounds int `yaml:"max_clarification_rounds"`

	// MaxExplanationRounds caps the explanation safety sub-loop.
	MaxExplanationRounds int `yaml:"max_explanation_rounds"`

	// MaxRisks bounds the risk analyzer output.
	MaxRisks int `yaml:"max_risks"`
}

// StorageConfig configures the persistence boundary.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures category file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "verdict",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-sonnet-4-20250514",
			BaseURL:  "https://api.anthropic.com/v1",
			Timeout:  "120s",
			MockMode: true,
		},

		Verification: VerificationConfig{
			MaxClarificationRounds: 0,
			MaxExplanationRounds:   2,
			MaxRisks:               2,
		},

		Storage: StorageConfig{
			DatabasePath: filepath.Join(".verdict", "verdict.db"),
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default path to .verdict/config.yaml.
func DefaultPath() string {
	return filepath.Join(".verdict", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if path := os.Getenv("VERDICT_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if os.Getenv("VERDICT_MOCK") == "1" {
		c.LLM.MockMode = true
	}
}

// Validate checks configuration for correctness.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "simulator":
	default:
		return fmt.Errorf("unknown LLM provider: %s (valid: anthropic, simulator)", c.LLM.Provider)
	}

	if !c.LLM.MockMode && c.LLM.Provider != "simulator" && c.LLM.APIKey == "" {
		return fmt.Errorf("no API key configured; set ANTHROPIC_API_KEY or enable mock_mode")
	}

	if c.Verification.MaxClarificationRounds < 0 {
		return fmt.Errorf("max_clarification_rounds must be >= 0")
	}
	if c.Verification.MaxExplanationRounds < 1 {
		return fmt.Errorf("max_explanation_rounds must be >= 1")
	}
	if c.Verification.MaxRisks < 1 {
		return fmt.Errorf("max_risks must be >= 1")
	}

	return nil
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}
