package config

import (
	"strings"

	"github.com/kilianp07/gridopf/core/model"
)

// LoggingConfig defines the log level and encoding.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level"`
	// Format is "json" or "console". Empty picks console when APP_ENV=dev.
	Format string `json:"format"`
	// File, when set, receives the logs instead of stderr. It is rotated
	// once it exceeds MaxSizeMB megabytes.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" validate:"gte=0"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	c.Level = strings.ToLower(c.Level)
	if c.File != "" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	c.Format = strings.ToLower(c.Format)
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return model.NewConfigError("logging.level", "unknown level %q", c.Level)
	}
	switch c.Format {
	case "", "json", "console":
	default:
		return model.NewConfigError("logging.format", "unknown format %q", c.Format)
	}
	return nil
}
