package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing the third-party module directly.
type Logger = zerolog.Logger

// NewLogger constructs the service logger. Development builds log at debug
// level through the console writer; everything else emits JSON lines.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(appEnv, os.Stdout)
}

func newLogger(appEnv string, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "posegen").
		Logger()
}

// Component returns a child logger tagged with the component name.
func Component(base *Logger, name string) *Logger {
	if base == nil {
		return DiscardLogger()
	}
	l := base.With().Str("component", name).Logger()
	return &l
}

// DiscardLogger returns a logger that drops every event.
func DiscardLogger() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}
