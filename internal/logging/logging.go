// Package logging sets up fml's logrus logger, following the teacher's
// internal/app.New: a level + formatter configured once at startup, with
// structured fields used throughout (`logrus.Fields{"component": ...}`)
// rather than ad-hoc string formatting.
//
// fml adds one thing the teacher's single-logger setup doesn't need: a
// `--debug` flag that mirrors everything at Debug level into a second,
// file-backed hook. Enabling it also lowers the logger's own level to
// Debug, so Debug entries appear on the primary output as well.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	// Level is the stdout logger's level name (trace, debug, info, warn,
	// error, fatal, panic). Invalid or empty falls back to "info".
	Level string
	// JSON selects logrus.JSONFormatter over TextFormatter, matching the
	// teacher's cfg.App.LogFormat switch.
	JSON bool
	// Debug, when true, adds a second hook writing Debug-and-above
	// entries to the debug log file and lowers the logger level to Debug
	// when Level is less verbose than that.
	Debug bool
}

// New builds the root logger per Options. On failure to open the debug
// log file it returns a working logger plus the open error, so callers
// can choose to log-and-continue rather than fail startup over a
// diagnostics sink.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	if !opts.Debug {
		return logger, nil
	}

	path, pathErr := DebugLogPath()
	if pathErr != nil {
		return logger, fmt.Errorf("logging: resolve debug log path: %w", pathErr)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return logger, fmt.Errorf("logging: create debug log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return logger, fmt.Errorf("logging: open debug log %s: %w", path, err)
	}

	logger.AddHook(&fileHook{
		writer:    file,
		formatter: &logrus.JSONFormatter{},
		minLevel:  logrus.DebugLevel,
	})
	if level > logrus.DebugLevel {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger, nil
}

// DebugLogPath resolves $XDG_STATE_HOME/fml/debug.log, falling back to
// os.TempDir()/fml/debug.log when XDG_STATE_HOME is unset.
func DebugLogPath() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "fml", "debug.log"), nil
	}
	return filepath.Join(os.TempDir(), "fml", "debug.log"), nil
}

// fileHook mirrors log entries at or above minLevel into an already-open
// file, independent of the primary logger's level/formatter.
type fileHook struct {
	writer    *os.File
	formatter logrus.Formatter
	minLevel  logrus.Level
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels[:h.minLevel+1]
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("logging: format debug entry: %w", err)
	}
	_, err = h.writer.Write(line)
	return err
}
