package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/camziny/z-fit-2.0/internal/logging"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(&buf, nil)))

	ctx := logging.WithAttrs(context.Background(), slog.String("trace_id", "abc"))
	child := logging.WithAttrs(ctx, slog.Int("exercise_index", 2))

	logger.LogAttrs(child, slog.LevelInfo, "set marked done")
	line := buf.String()
	for _, want := range []string{"trace_id=abc", "exercise_index=2", `msg="set marked done"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q does not contain %q", line, want)
		}
	}

	// The parent context must not see attributes added to the child.
	if got := len(logging.Attrs(ctx)); got != 1 {
		t.Errorf("len(Attrs(parent)) = %d, want 1", got)
	}
}
