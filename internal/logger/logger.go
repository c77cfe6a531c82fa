package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger returns a console logger in development and a JSON logger
// everywhere else.
func InitLogger(env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if env == "development" {
		return log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return zerolog.New(os.Stderr).With().Timestamp().Str("service", "account-service").Logger()
}
