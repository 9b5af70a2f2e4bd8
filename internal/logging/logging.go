// Package logging builds the zerolog loggers shared by the carbon tracker binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds a logger tagged with the service name and installs it as the
// package-global zerolog logger. Unknown levels fall back to info; format
// "console" selects human-readable output, anything else emits JSON.
func Init(service, level, format string) zerolog.Logger {
	logger := New(os.Stderr, service, level, format)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}

// New builds a logger writing to out without touching global state.
func New(out io.Writer, service, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
