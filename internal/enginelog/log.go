// Package enginelog provides the storage core's structured logger: a
// global zerolog.Logger plus dimension-specific child-logger helpers
// (ring, block, sequence, operation). Within the core, internal/block
// logs derived-sequence propagation failures through it; cmd/engine
// configures it.
package enginelog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured by Init.
var Logger zerolog.Logger

// Level names a logging verbosity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures Init.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init sets the global Logger from cfg. Safe to call once at process
// startup; not safe to call concurrently with logging.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithRing returns a child logger scoped to one ring.
func WithRing(ring string) zerolog.Logger {
	return Logger.With().Str("ring", ring).Logger()
}

// WithBlock returns a child logger scoped to one block within a ring.
func WithBlock(ring, block string) zerolog.Logger {
	return Logger.With().Str("ring", ring).Str("block", block).Logger()
}

// WithSequence returns a child logger scoped to one sequence.
func WithSequence(ring, sequence string) zerolog.Logger {
	return Logger.With().Str("ring", ring).Str("sequence", sequence).Logger()
}

// WithOp returns a child logger tagging the storage command in flight.
func WithOp(op string) zerolog.Logger {
	return Logger.With().Str("op", op).Logger()
}

func init() {
	// A usable default before Init is explicitly called, matching the
	// teacher's console-writer fallback so tests and library callers that
	// never call Init still get readable output.
	Init(Config{Level: InfoLevel})
}
