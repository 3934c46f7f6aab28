package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu        sync.RWMutex
	logFormat string
	output    io.Writer = os.Stderr
)

// Configure sets the global level ("debug", "info", "warn", "error") and the
// output format ("json" or "console") of loggers created afterwards. An empty
// format falls back to the APP_ENV detection.
func Configure(level, fmtName string) error {
	if level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zerolog.SetGlobalLevel(lvl)
	}
	switch strings.ToLower(fmtName) {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", fmtName)
	}
	mu.Lock()
	logFormat = strings.ToLower(fmtName)
	mu.Unlock()
	return nil
}

// SetOutput redirects loggers created afterwards. Logs go to stderr by
// default so they never mix with results printed on stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger. The console writer is used when
// the configured format is "console", or when no format is configured and
// APP_ENV is "dev". All logs include the provided component field.
func NewZerologLogger(component string) Logger {
	mu.RLock()
	f, w := logFormat, output
	mu.RUnlock()
	if f == "" && strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		f = "console"
	}
	if f == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
