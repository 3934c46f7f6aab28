package logger

import corelogger "github.com/kilianp07/gridopf/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything. Library callers such as the scenario runner
// use it when they only care about the result record.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns a Logger tagged with the given component, honouring the level,
// format and output set by Configure and OpenRotatingFile.
func New(component string) Logger {
	return NewZerologLogger(component)
}
