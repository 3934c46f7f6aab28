package config

import "github.com/kilianp07/gridopf/core/model"

// Output formats understood by the solve command.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// OutputConfig selects how result records are printed.
type OutputConfig struct {
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *OutputConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = FormatText
	}
}

// Validate checks the format name.
func (c OutputConfig) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON, FormatYAML, FormatCSV:
		return nil
	}
	return model.NewConfigError("output.format", "unknown format %q", c.Format)
}
