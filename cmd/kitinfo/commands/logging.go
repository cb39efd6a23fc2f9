package commands

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging configures the global zerolog logger used before a session
// starts and for fatal errors. Only warnings and errors are shown by default
// so they do not drown the prompts; KITINFO_LOG_LEVEL or LOG_LEVEL lowers it.
//
// The global level is left at trace: session loggers carry their own level,
// set from telemetry.log_level or --verbose.
func SetupLogging(w io.Writer) {
	level := os.Getenv("KITINFO_LOG_LEVEL")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
