package logger

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotateConfig describes a rotating log file.
type RotateConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// rotatingFile restores the previous output when closed so that loggers
// created afterwards do not reopen the file.
type rotatingFile struct {
	lj   *lumberjack.Logger
	prev io.Writer
}

func (r *rotatingFile) Close() error {
	mu.Lock()
	if output == io.Writer(r.lj) {
		output = r.prev
	}
	mu.Unlock()
	return r.lj.Close()
}

// OpenRotatingFile redirects loggers created afterwards to a size rotated
// file. The returned closer releases the file and restores the previous
// output.
func OpenRotatingFile(cfg RotateConfig) (io.Closer, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	mu.Lock()
	prev := output
	output = lj
	mu.Unlock()
	return &rotatingFile{lj: lj, prev: prev}, nil
}
