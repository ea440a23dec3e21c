// Package logging configures the process-wide slog logger.
//
// Logs always go to a rotating file rather than stderr, since the terminal
// is owned by the interactive UI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "parley.log"

const (
	maxLogSizeMB  = 5
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Options controls log destination and verbosity.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Empty means info.
	Level string
	// File is the log file path. Empty means ~/.parley/logs/parley.log.
	File string
	// Format is "text" or "json". Empty means json.
	Format string
}

// Setup configures slog to write structured logs to a rotating file and
// installs the logger as the slog default.
func Setup(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	handlerOptions := &slog.HandlerOptions{Level: level}

	logPath := strings.TrimSpace(opts.File)
	if logPath == "" {
		logPath = defaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		logger := slog.New(newHandler(opts.Format, io.Discard, handlerOptions))
		slog.SetDefault(logger)

		return logger, err
	}

	writer := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}

	logger := slog.New(newHandler(opts.Format, writer, handlerOptions))
	slog.SetDefault(logger)

	return logger, nil
}

func defaultLogPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(homeDir) == "" {
		return filepath.Join(".parley", "logs", defaultLogFile)
	}

	return filepath.Join(homeDir, ".parley", "logs", defaultLogFile)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return slog.NewTextHandler(out, opts)
	default:
		return slog.NewJSONHandler(out, opts)
	}
}
