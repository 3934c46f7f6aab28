package config

import "github.com/kilianp07/gridopf/core/model"

// SentryConfig defines settings for Sentry error monitoring. An empty DSN
// disables reporting.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
}

// Validate checks the sample rate.
func (c SentryConfig) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return model.NewConfigError("sentry.traces_sample_rate", "must be within [0, 1], got %v", c.TracesSampleRate)
	}
	return nil
}
