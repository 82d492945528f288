// Package logger provides the process-wide leveled logger.
//
// Output always goes to stderr by default: stdout carries the MCP stdio stream.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	base    = newLogger(os.Stderr, zerolog.InfoLevel)
	level   = zerolog.InfoLevel
	verbose bool
)

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w, effectiveLevel())
}

// SetVerbose enables debug output regardless of the configured level.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	base = base.Level(effectiveLevel())
}

// SetLevel sets the minimum level from a name (debug, info, warn, error).
// Unknown names fall back to info.
func SetLevel(name string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(name)
	base = base.Level(effectiveLevel())
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// IsVerbose reports whether debug output is forced on.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

func effectiveLevel() zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return level
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug logs at debug level.
func Debug(format string, args ...any) {
	l := current()
	l.Debug().Msgf(format, args...)
}

// Info logs at info level.
func Info(format string, args ...any) {
	l := current()
	l.Info().Msgf(format, args...)
}

// Warn logs at warn level.
func Warn(format string, args ...any) {
	l := current()
	l.Warn().Msgf(format, args...)
}

// Error logs at error level.
func Error(format string, args ...any) {
	l := current()
	l.Error().Msgf(format, args...)
}
