package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// logger fields
const (
	Component = "component"
	Role      = "role"
	Email     = "email"
	Action    = "action"
	RequestID = "request_id"
)

// New builds the root logger. Development gets a console writer on stderr,
// everything else gets JSON lines.
func New(env, level string) zerolog.Logger {
	return NewWithWriter(env, level, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(env, level string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if env != "production" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
