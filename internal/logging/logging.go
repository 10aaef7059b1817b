// Package logging configures zerolog's global logger from LogConfig,
// grounded on hyperifyio-goresearch's cmd/goresearch/main.go (same
// zerolog.ConsoleWriter-or-JSON, SetGlobalLevel setup), generalized from a
// hardcoded console writer to a config-driven json/console switch.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llmgateway/proxycore/internal/config"
)

// Configure sets zerolog's global logger and level from cfg. Call once at
// startup before anything else logs.
func Configure(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
