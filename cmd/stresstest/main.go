package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/camziny/z-fit-2.0/internal/e2etest"
	"github.com/camziny/z-fit-2.0/internal/logging"
	"github.com/camziny/z-fit-2.0/internal/testhelpers"
	"github.com/camziny/z-fit-2.0/internal/workout"
	"golang.org/x/sync/errgroup"
)

const (
	numUsers                   = 10
	userRegistrationTimeout    = 30 * time.Second
	scenarioTimeout            = 2 * time.Minute
	historyTimeout             = 5 * time.Minute
	maxConcurrentRegistrations = 10
	maxConcurrentOperations    = 20
	historySessionsPerUser     = 12
	successRateThreshold       = 95.0
	expectedArgsCount          = 2
	percentageMultiplier       = 100
	restTick                   = time.Millisecond
	maxRIR                     = 5
)

// templateIDs are the built-in templates the scenarios rotate through.
var templateIDs = []int{1, 2, 3, 4, 5, 6, 7} //nolint:gochecknoglobals // fixed rotation.

// AuthenticatedUser holds a client with a signed-in session.
type AuthenticatedUser struct {
	Client *e2etest.Client
	Index  int
}

// SetupUsers registers numUsers users, each with their own client and cookie jar.
func SetupUsers(ctx context.Context, url, hostname string, logger *slog.Logger) ([]*AuthenticatedUser, error) {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting user registration", slog.Int("num_users", numUsers))

	var (
		users   = make([]*AuthenticatedUser, 0, numUsers)
		usersMu sync.Mutex
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRegistrations)
	for i := range numUsers {
		g.Go(func() error {
			userCtx, cancel := context.WithTimeout(ctx, userRegistrationTimeout)
			defer cancel()

			client, err := e2etest.NewClient(url, hostname, url)
			if err != nil {
				return fmt.Errorf("user %d: new client: %w", i, err)
			}
			if err = client.Register(userCtx); err != nil {
				return fmt.Errorf("user %d: register: %w", i, err)
			}
			usersMu.Lock()
			users = append(users, &AuthenticatedUser{Client: client, Index: i})
			usersMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("registration failure: %w", err)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "All users registered successfully", slog.Int("total_users", len(users)))
	return users, nil
}

// GenerateHistory performs a run of sessions for every user so that progression profiles and last completed
// weights exist before the load test.
func GenerateHistory(ctx context.Context, users []*AuthenticatedUser, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)
	for _, user := range users {
		g.Go(func() error {
			for i := range historySessionsPerUser {
				templateID := templateIDs[(user.Index+i)%len(templateIDs)]
				if _, err := runSession(ctx, user.Client, templateID); err != nil {
					return fmt.Errorf("user %d history session %d: %w", user.Index, i, err)
				}
			}
			logger.LogAttrs(ctx, slog.LevelDebug, "history generated", slog.Int("user", user.Index))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("generate history: %w", err)
	}
	return nil
}

func runSession(ctx context.Context, client *e2etest.Client, templateID int) (workout.Session, error) {
	sess, err := client.BuildSession(ctx, templateID, true)
	if err != nil {
		return workout.Session{}, fmt.Errorf("build session from template %d: %w", templateID, err)
	}
	rir := rand.IntN(maxRIR + 1) //nolint:gosec // load pattern, not security.
	done, err := client.PerformSession(ctx, sess, restTick, rir)
	if err != nil {
		return workout.Session{}, fmt.Errorf("perform session %s: %w", sess.ID, err)
	}
	return done, nil
}

// SessionScenario reads what a returning lifter looks at and performs one more session.
func SessionScenario(ctx context.Context, user *AuthenticatedUser) error {
	client := user.Client
	if err := client.GetJSON(ctx, "/api/sessions?limit=10", nil); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	templateID := templateIDs[rand.IntN(len(templateIDs))] //nolint:gosec // load pattern, not security.
	if err := client.PostJSON(ctx, fmt.Sprintf("/api/templates/%d/preview", templateID), map[string]any{},
		nil); err != nil {
		return fmt.Errorf("preview template %d: %w", templateID, err)
	}
	sess, err := runSession(ctx, client, templateID)
	if err != nil {
		return err
	}
	var profiles map[int]workout.ProgressionProfile
	path := "/api/progressions?"
	for _, ex := range sess.Exercises {
		path += fmt.Sprintf("exercise=%d&", ex.ExerciseID)
	}
	if err = client.GetJSON(ctx, strings.TrimSuffix(path, "&"), &profiles); err != nil {
		return fmt.Errorf("get progressions: %w", err)
	}
	return nil
}

// RunLoadTest runs one scenario per user concurrently.
func RunLoadTest(ctx context.Context, users []*AuthenticatedUser, logger *slog.Logger) error {
	userCount := len(users)
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting load test", slog.Int("num_users", userCount))

	var successCount, failureCount atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)
	for _, user := range users {
		g.Go(func() error {
			scenarioCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
			defer cancel()

			if err := SessionScenario(scenarioCtx, user); err != nil {
				failureCount.Add(1)
				// A failing scenario must not stop the others.
				logger.LogAttrs(scenarioCtx, slog.LevelWarn, "Scenario failed",
					slog.Int("user", user.Index), slog.Any("error", err))
				return nil
			}
			successCount.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load test failed: %w", err)
	}

	successRate := float64(successCount.Load()) / float64(userCount) * percentageMultiplier
	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed",
		slog.Int64("successful", successCount.Load()),
		slog.Int64("failed", failureCount.Load()),
		slog.Float64("success_rate", successRate))

	if successRate < successRateThreshold {
		return fmt.Errorf("load test failed: success rate %.1f%% below threshold", successRate)
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
		hostname = "localhost"
	}

	client, err := e2etest.NewClient(url, hostname, url)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", slog.Any("error", err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}

	setupStart := time.Now()
	users, err := SetupUsers(ctx, url, hostname, logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to setup users", slog.Any("error", err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "User setup completed", slog.Duration("setup_duration", time.Since(setupStart)))

	historyStart := time.Now()
	if err = GenerateHistory(ctx, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "some history generation failed, continuing with load test",
			slog.Any("error", err))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "History generation completed",
		slog.Duration("history_duration", time.Since(historyStart)),
		slog.Int("sessions_per_user", historySessionsPerUser))

	loadTestStart := time.Now()
	if err = RunLoadTest(ctx, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "load test failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed successfully 🙌",
		slog.Duration("total_duration", time.Since(start)),
		slog.Duration("load_test_duration", time.Since(loadTestStart)),
		slog.Int("users_tested", len(users)))
}
