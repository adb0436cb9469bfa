package config

import "autoeval/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" env:"LEVEL"`           // debug, info, warn, error
	Format     string          `yaml:"format" env:"FORMAT"`         // json, console
	File       string          `yaml:"file" env:"FILE"`             // empty disables the file sink
	AuditFile  string          `yaml:"audit_file" env:"AUDIT_FILE"` // action journal, JSON lines
	History    string          `yaml:"history" env:"HISTORY"`       // run history, empty disables
	Console    bool            `yaml:"console" env:"CONSOLE"`       // also log to stderr
	Categories map[string]bool `yaml:"categories"`                  // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Options converts the section into logging.Options.
func (c *LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Console:    c.Console,
		Categories: c.Categories,
		AuditFile:  c.AuditFile,
	}
}
