package log

import (
	"io"

	"github.com/rs/zerolog"

	logAdapter "github.com/wateringctl/wateringctl/internal/adapters/log"
)

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(logger zerolog.Logger) Logger {
	return logAdapter.NewZerologAdapterWithLogger(logger)
}

// NewConsoleLogger logs to stderr through zerolog's console writer.
func NewConsoleLogger() Logger {
	return logAdapter.NewZerologAdapter()
}

// New builds a zerolog-backed logger writing to w. level is a zerolog level
// name ("debug", "info", ...); format "json" writes JSON lines, anything
// else the console format.
func New(w io.Writer, level, format string) (Logger, error) {
	zl, err := logAdapter.NewLogger(w, level, format)
	if err != nil {
		return nil, err
	}
	return logAdapter.NewZerologAdapterWithLogger(zl), nil
}
