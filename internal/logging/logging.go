// Package logging configures the global zerolog logger for the voiceqa
// binaries.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global log level and output format. Pretty output is for
// interactive terminals; the default is JSON on stderr.
func Setup(level string, pretty bool) {
	zerolog.SetGlobalLevel(parseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
