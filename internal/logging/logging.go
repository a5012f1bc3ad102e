package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/mailassist/internal/model"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds the application logger from cfg, installs it as the
// package default and returns it together with a closer for the log file.
// Verbose forces debug level.
func Setup(cfg model.LogConfig, verbose bool) (*log.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	if verbose {
		level = log.DebugLevel
	}

	var (
		writer io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.File {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		writer = f
		closer = f
	}

	formatter, err := parseFormat(cfg.Format)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	logger := log.NewWithOptions(writer, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "mailassist",
	})
	log.SetDefault(logger)

	logger.Debug("logger initialized",
		"level", level.String(),
		"format", cfg.Format,
		"output", cfg.File,
	)

	return logger, closer, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDefault returns l, or the package default when l is nil.
func OrDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}

func parseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel, nil
	}
	return log.ParseLevel(strings.ToLower(s))
}

func parseFormat(s string) (log.Formatter, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("invalid log format: %s", s)
	}
}
