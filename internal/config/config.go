package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = ".autoeval/config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUTOEVAL_"

// Config holds all autoeval configuration.
type Config struct {
	// Engine pacing and behavior
	Automation AutomationConfig `yaml:"automation" envPrefix:"AUTOMATION_"`

	// Browser session
	Browser BrowserConfig `yaml:"browser" envPrefix:"BROWSER_"`

	// Page selectors used by the browser front-end
	Selectors SelectorsConfig `yaml:"selectors"`

	// Logging
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Automation: DefaultAutomationConfig(),
		Browser:    DefaultBrowserConfig(),
		Selectors:  DefaultSelectors(),
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			File:      ".autoeval/autoeval.log",
			AuditFile: ".autoeval/actions.jsonl",
			History:   ".autoeval/history.json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from a YAML file and applies AUTOEVAL_*
// environment overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFile is Load without environment overrides, for editing the file
// itself.
func LoadFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
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

// applyEnvOverrides applies AUTOEVAL_* environment variables on top of the
// file values. Unset variables leave fields untouched.
func (c *Config) applyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Automation.Validate(); err != nil {
		return fmt.Errorf("automation: %w", err)
	}
	if err := c.Selectors.Validate(); err != nil {
		return fmt.Errorf("selectors: %w", err)
	}
	if c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser: action_timeout must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics: addr required when enabled")
	}
	return nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
