package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "storeadmin-api"

func New(environment string) zerolog.Logger {
	return NewWithWriter(environment, os.Stdout)
}

func NewWithWriter(environment string, out io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", serviceName).
		Str("env", environment).
		Logger()

	if environment != "production" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}

// Component tags every event of the returned logger with the emitting subsystem.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
