package workout

import (
	"errors"
	"testing"

	"github.com/camziny/z-fit-2.0/internal/sqlite"
	"github.com/camziny/z-fit-2.0/internal/testhelpers"
)

type countingObserver struct {
	noopObserver
	conflicts int
	ratings   int
}

func (o *countingObserver) ConflictRetried() { o.conflicts++ }
func (o *countingObserver) EffortRated(int)  { o.ratings++ }

func newInternalTestService(t *testing.T) (*Service, *countingObserver, string) {
	t.Helper()
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})

	observer := &countingObserver{noopObserver: noopObserver{}, conflicts: 0, ratings: 0}
	svc := NewService(db, logger, nil, observer)
	id, err := svc.BuildSession(ctx, BuildSessionRequest{
		TemplateID:      1,
		Owner:           AnonOwner("anon-1"),
		WeightOverrides: map[int]float64{1: 100},
		Assessments:     nil,
		RestEnabled:     false,
	})
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	return svc, observer, id
}

// navigateBehind moves the cursor of the stored session from outside the running update.
func navigateBehind(t *testing.T, svc *Service, id string) {
	t.Helper()
	err := svc.repo.sessions.Update(t.Context(), id, func(sess *Session) (bool, error) {
		out, err := sess.Apply(Navigate{Direction: DirectionNext}, svc.now())
		return out.Changed, err
	})
	if err != nil {
		t.Fatalf("concurrent update: %v", err)
	}
}

func TestSessionRepository_Update_Conflict(t *testing.T) {
	svc, _, id := newInternalTestService(t)

	err := svc.repo.sessions.Update(t.Context(), id, func(sess *Session) (bool, error) {
		navigateBehind(t, svc, id)
		_, applyErr := sess.Apply(MarkSetDone{ExerciseIndex: 0, SetIndex: 0, PerformedReps: nil,
			PerformedWeightKg: nil}, svc.now())
		return true, applyErr
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Update() error = %v, want ErrConflict", err)
	}

	sess, err := svc.GetSession(t.Context(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.CompletedSets() != 0 || sess.Version != 2 {
		t.Errorf("got %d done sets at version %d, want only the concurrent navigation applied", sess.CompletedSets(),
			sess.Version)
	}
}

func TestService_UpdateSession_RetriesConflicts(t *testing.T) {
	svc, observer, id := newInternalTestService(t)

	attempts := 0
	err := svc.updateSession(t.Context(), id, func(sess *Session) (bool, error) {
		attempts++
		if attempts == 1 {
			navigateBehind(t, svc, id)
		}
		out, err := sess.Apply(MarkSetDone{ExerciseIndex: 0, SetIndex: 0, PerformedReps: nil,
			PerformedWeightKg: nil}, svc.now())
		return out.Changed, err
	})
	if err != nil {
		t.Fatalf("updateSession: %v", err)
	}
	if attempts != 2 || observer.conflicts != 1 {
		t.Errorf("got %d attempts and %d conflicts, want 2 and 1", attempts, observer.conflicts)
	}

	sess, err := svc.GetSession(t.Context(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !sess.Exercises[0].Sets[0].Done || sess.Version != 3 {
		t.Errorf("first set done %v at version %d, want done at version 3", sess.Exercises[0].Sets[0].Done,
			sess.Version)
	}
}

func TestService_UpdateSession_GivesUp(t *testing.T) {
	svc, observer, id := newInternalTestService(t)

	err := svc.updateSession(t.Context(), id, func(sess *Session) (bool, error) {
		navigateBehind(t, svc, id)
		return true, nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("updateSession() error = %v, want ErrConflict", err)
	}
	if observer.conflicts != maxUpdateAttempts {
		t.Errorf("got %d conflicts, want %d", observer.conflicts, maxUpdateAttempts)
	}
}

func TestService_RecordEffortRating_RepeatIsNotCounted(t *testing.T) {
	svc, observer, id := newInternalTestService(t)

	for _, rir := range []int{2, 2, 3} {
		if _, err := svc.RecordEffortRating(t.Context(), id, 0, rir, nil); err != nil {
			t.Fatalf("RecordEffortRating(%d): %v", rir, err)
		}
	}
	if observer.ratings != 2 {
		t.Errorf("got %d observed ratings, want 2", observer.ratings)
	}
}
