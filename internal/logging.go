package internal

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// NewLogger builds the application logger: human-readable text on stderr,
// JSON appended to topical.log in the data directory. The cleanup function
// closes the log file.
func NewLogger(cfg *Config) (*slog.Logger, func() error) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	var console slog.Handler
	if cfg.Quiet {
		console = slog.NewTextHandler(io.Discard, nil)
	} else {
		console = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logPath := filepath.Join(cfg.DataDir, "topical.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger := slog.New(console)
		logger.Warn("could not open log file, logging to stderr only", "error", err, "path", logPath)
		return logger, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(slogmulti.Fanout(console, fileHandler))
	return logger, file.Close
}

// NewNopLogger returns a logger that discards everything. Used in tests and
// wherever a component requires a logger but output is unwanted.
func NewNopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
