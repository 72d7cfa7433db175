package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/camziny/z-fit-2.0/internal/e2etest"
	"github.com/camziny/z-fit-2.0/internal/logging"
	"github.com/camziny/z-fit-2.0/internal/testhelpers"
)

const (
	smokeTemplateID = 1
	// restTick shortens every rest second so the walk through a session finishes quickly.
	restTick = 10 * time.Millisecond
)

func TestAuth(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	if err := client.Register(ctx); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	if err := client.Logout(ctx); err != nil {
		return fmt.Errorf("logout user: %w", err)
	}
	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("login user: %w", err)
	}
	return nil
}

// TestSession builds a session, performs every set while resting between them, and completes it.
func TestSession(ctx context.Context, logger *slog.Logger, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	sess, err := client.BuildSession(ctx, smokeTemplateID, true)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}
	ctx = logging.WithAttrs(ctx, slog.String("session_id", sess.ID))
	if sess, err = client.PerformSession(ctx, sess, restTick, 2); err != nil { //nolint:mnd // two reps in reserve.
		return fmt.Errorf("perform session: %w", err)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "session completed", slog.Int("exercises", len(sess.Exercises)))
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		client   *e2etest.Client
		err      error
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
		hostname = "localhost"
	}

	if client, err = e2etest.NewClient(url, hostname, url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", slog.Any("error", err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}
	if err = TestAuth(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing auth", slog.Any("error", err))
		os.Exit(1)
	}
	if err = TestSession(ctx, logger, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing session", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
	os.Exit(0)
}
