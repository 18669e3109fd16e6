package cliconfig

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/mutbatch/pkg/log"
)

// NewLogger returns a console zerolog logger writing to stderr at the given
// level. Unknown levels are an error.
func NewLogger(level string) (zerolog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	return consoleLogger(lvl), nil
}

// ErrorLogger returns an error-level console logger for reporting startup failures.
func ErrorLogger() zerolog.Logger {
	return consoleLogger(zerolog.ErrorLevel)
}

func consoleLogger(lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
