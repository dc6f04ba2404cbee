// +build !logless

// Package emberlog is the ambient structured-logging surface used by
// pkg/compiler (per-pass node counts), pkg/executor (per-node
// dispatch), and pkg/backend/* (pipeline build failures). Build with the
// logless tag to compile it out entirely.
package emberlog

import (
	"os"

	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
)

// Log is the root logger; component loggers from New are derived from it.
var Log = logger.With().Caller().Logger().Output(zerolog.ConsoleWriter{Out: os.Stderr})

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// New returns a logger tagged with component (a pass name, "executor",
// "cpu", "metal", ...), attached as a field to every line it emits.
func New(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}
