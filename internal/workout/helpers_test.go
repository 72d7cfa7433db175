package workout_test

import (
	"testing"
	"time"

	"github.com/camziny/z-fit-2.0/internal/ptr"
	"github.com/camziny/z-fit-2.0/internal/workout"
)

//nolint:gochecknoglobals // fixed clock for deterministic tests.
var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newSets(n, reps int, weightKg *float64) []workout.SessionSet {
	sets := make([]workout.SessionSet, n)
	for i := range sets {
		sets[i] = workout.SessionSet{
			TargetReps:        reps,
			WeightKg:          ptr.Clone(weightKg),
			Done:              false,
			CompletedAt:       nil,
			CompletedReps:     nil,
			CompletedWeightKg: nil,
		}
	}
	return sets
}

func newExercise(id int, name string, grouping workout.Grouping, sets []workout.SessionSet) workout.SessionExercise {
	return workout.SessionExercise{
		ExerciseID:  id,
		Name:        name,
		Equipment:   workout.EquipmentBarbell,
		LoadingMode: workout.LoadingBar,
		LoadBasis:   workout.LoadExternal,
		RestSeconds: 90,
		Grouping:    grouping,
		Sets:        sets,
		RIR:         nil,
	}
}

func newSession(t *testing.T, restEnabled bool, exercises ...workout.SessionExercise) *workout.Session {
	t.Helper()
	return &workout.Session{
		ID:          "test-session",
		Owner:       workout.AnonOwner("anon"),
		TemplateID:  1,
		Status:      workout.StatusActive,
		StartedAt:   testNow,
		CompletedAt: nil,
		Cursor:      workout.Cursor{ExerciseIndex: 0, SetIndex: 0},
		RestEnabled: restEnabled,
		Exercises:   exercises,
		Version:     1,
	}
}

// markCurrent marks the set under the cursor done.
func markCurrent(t *testing.T, sess *workout.Session) workout.Outcome {
	t.Helper()
	out, err := sess.Apply(workout.MarkSetDone{
		ExerciseIndex:     sess.Cursor.ExerciseIndex,
		SetIndex:          sess.Cursor.SetIndex,
		PerformedReps:     nil,
		PerformedWeightKg: nil,
	}, testNow)
	if err != nil {
		t.Fatalf("mark %+v done: %v", sess.Cursor, err)
	}
	return out
}
