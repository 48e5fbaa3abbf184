// =============================================================================
// X9 Cash Letter Encoder - Structured Logging
// =============================================================================
//
// One process-wide slog logger writing JSON lines. Until Setup is called the
// logger discards everything, so library code and tests can log freely.
//
// =============================================================================

package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config controls where and how verbosely the logger writes.
type Config struct {
	// File is the log file path. Empty writes to stderr.
	File string

	// Level is one of debug, info, warn or error.
	Level string

	// Verbose forces debug level and adds source locations.
	Verbose bool
}

var (
	mu      sync.RWMutex
	global  = discard()
	logFile *os.File
)

// Setup installs the global logger and returns a cleanup function that
// closes the log file.
func Setup(cfg Config) (func() error, error) {
	var out io.Writer = os.Stderr
	var f *os.File

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		opened, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, err
		}
		f = opened
		out = f
	}

	level := ParseLevel(cfg.Level)
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Verbose,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})

	mu.Lock()
	global = slog.New(h)
	logFile = f
	mu.Unlock()

	L().Debug("logger.initialized", "file", cfg.File, "level", level.String())

	cleanup := func() error {
		mu.Lock()
		defer mu.Unlock()

		var cerr error
		if logFile != nil {
			cerr = logFile.Close()
		}
		logFile = nil
		global = discard()
		return cerr
	}

	return cleanup, nil
}

// L returns the global logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
