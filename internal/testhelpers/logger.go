// Package testhelpers wires test output into the application's logging setup.
package testhelpers

import (
	"io"
	"log/slog"
	"testing"

	"github.com/camziny/z-fit-2.0/internal/logging"
)

// NewLogger creates a debug level logger writing to logSink, such as the Writer returned by NewWriter.
func NewLogger(logSink io.Writer) *slog.Logger {
	handler := logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	return slog.New(handler)
}

// Logger is shorthand for NewLogger(NewWriter(t)).
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	return NewLogger(NewWriter(t))
}
