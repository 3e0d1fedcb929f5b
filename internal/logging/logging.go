// Package logging builds the zerolog logger driftroomd threads through
// every subsystem, grounded on ws/config.go's zerolog usage.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamsocket-labs/driftroom/internal/config"
)

// New builds a zerolog.Logger per cfg.LogLevel/LogFormat.
func New(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "pretty" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().Timestamp().Logger(), nil
}
