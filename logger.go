package pflow

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/pflow/internal/observe"
)

// NewLogger returns a zerolog.Logger configured the way this module's own
// packages expect to be logged through: console-pretty when stderr is a
// terminal, JSON with RFC3339 timestamps otherwise.
func NewLogger(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	var writer io.Writer = os.Stderr
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// NewOutput wraps log as an Output hook suitable for EngineConfig.Output.
func NewOutput(log zerolog.Logger) Output {
	return observe.NewZerologOutput(log)
}
