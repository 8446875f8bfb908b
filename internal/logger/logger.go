// Package logger builds the process zerolog logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Config holds logger options.
type Config struct {
	Env   string    // development -> readable console; anything else -> JSON
	Level string    // trace, debug, info, warn, error
	Out   io.Writer // defaults to stderr
}

// New creates a structured logger. Output defaults to stderr so stdout stays
// reserved for command output. The zerolog global logger is left untouched.
func New(cfg Config) zerolog.Logger {
	w := cfg.Out
	if w == nil {
		w = os.Stderr
	}
	if cfg.Env == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
