package e2etest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/camziny/z-fit-2.0/internal/resttimer"
	"github.com/camziny/z-fit-2.0/internal/workout"
)

// SessionEvent is the response to every session event endpoint.
type SessionEvent struct {
	Outcome workout.Outcome `json:"outcome"`
	Session workout.Session `json:"session"`
}

// BuildSession builds a session from a template without weight overrides.
func (c *Client) BuildSession(ctx context.Context, templateID int, restEnabled bool) (workout.Session, error) {
	var resp struct {
		Session workout.Session `json:"session"`
	}
	body := map[string]any{"templateId": templateID, "restEnabled": restEnabled}
	status, err := c.DoJSON(ctx, http.MethodPost, "/api/sessions", body, &resp)
	if err != nil {
		return workout.Session{}, fmt.Errorf("build session: %w", err)
	}
	if err = expectStatus(status, http.StatusCreated); err != nil {
		return workout.Session{}, fmt.Errorf("build session: %w", err)
	}
	return resp.Session, nil
}

// PerformSession marks every set done in cursor order and completes the session, rating every exercise that owes
// a rating with rir. Between sets it waits out the suggested rest with every rest second lasting restTick.
func (c *Client) PerformSession(
	ctx context.Context,
	sess workout.Session,
	restTick time.Duration,
	rir int,
) (workout.Session, error) {
	var (
		sessionURL = "/api/sessions/" + sess.ID
		cursor     = sess.Cursor
		ev         SessionEvent
	)
	for {
		path := fmt.Sprintf("%s/exercises/%d/sets/%d/done", sessionURL, cursor.ExerciseIndex, cursor.SetIndex)
		if err := c.PostJSON(ctx, path, nil, &ev); err != nil {
			return workout.Session{}, fmt.Errorf("mark set %+v done: %w", cursor, err)
		}
		if ev.Outcome.AwaitingCompletion {
			break
		}
		if !resttimer.Start(ctx, ev.Outcome.RestSeconds, resttimer.WithInterval(restTick)).Wait() {
			return workout.Session{}, fmt.Errorf("rest interrupted: %w", ctx.Err())
		}
		cursor = ev.Outcome.Cursor
	}

	ratings := make(map[int]int, len(ev.Outcome.OwedRatings))
	for _, idx := range ev.Outcome.OwedRatings {
		ratings[idx] = rir
	}
	if err := c.PostJSON(ctx, sessionURL+"/complete", map[string]any{"ratings": ratings}, &ev); err != nil {
		return workout.Session{}, fmt.Errorf("complete session: %w", err)
	}
	if ev.Session.Status != workout.StatusCompleted {
		return workout.Session{}, fmt.Errorf("session status %s after completing", ev.Session.Status)
	}
	return ev.Session, nil
}
