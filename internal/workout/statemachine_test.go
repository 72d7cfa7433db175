package workout_test

import (
	"errors"
	"testing"

	"github.com/camziny/z-fit-2.0/internal/ptr"
	"github.com/camziny/z-fit-2.0/internal/workout"
	"github.com/google/go-cmp/cmp"
)

func TestMarkSetDone_VisitsEverySetOnce(t *testing.T) {
	sess := newSession(t, true,
		newExercise(1, "Back Squat", workout.Standalone{}, newSets(3, 5, ptr.Ref(100.0))),
		newExercise(3, "Romanian Deadlift", workout.Standalone{}, newSets(2, 8, ptr.Ref(80.0))),
		newExercise(9, "Push-ups", workout.Standalone{}, newSets(2, 15, nil)),
	)
	total := sess.TotalSets()

	visited := map[workout.Cursor]bool{}
	var out workout.Outcome
	for range total {
		c := sess.Cursor
		if visited[c] {
			t.Fatalf("set %+v visited twice", c)
		}
		visited[c] = true
		out = markCurrent(t, sess)
	}

	if len(visited) != total {
		t.Errorf("visited %d sets, want %d", len(visited), total)
	}
	if got := sess.CompletedSets(); got != total {
		t.Errorf("CompletedSets() = %d, want %d", got, total)
	}
	if !out.AwaitingCompletion || !sess.AwaitingCompletion() {
		t.Errorf("want awaiting completion after the last set")
	}
	if diff := cmp.Diff([]int{0, 1}, out.OwedRatings); diff != "" {
		t.Errorf("OwedRatings mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkSetDone_SupersetRoundRobin(t *testing.T) {
	sess := newSession(t, true,
		newExercise(7, "Bench Press", workout.GroupMember{GroupID: "A", GroupOrder: 1}, newSets(2, 8, ptr.Ref(80.0))),
		newExercise(12, "Bent-over Rows", workout.GroupMember{GroupID: "A", GroupOrder: 2},
			newSets(4, 8, ptr.Ref(60.0))),
		newExercise(15, "Bicep Curls", workout.Standalone{}, newSets(2, 12, ptr.Ref(12.5))),
	)

	want := []workout.Cursor{
		{ExerciseIndex: 0, SetIndex: 0},
		{ExerciseIndex: 1, SetIndex: 0},
		{ExerciseIndex: 0, SetIndex: 1},
		{ExerciseIndex: 1, SetIndex: 1},
		{ExerciseIndex: 1, SetIndex: 2},
		{ExerciseIndex: 1, SetIndex: 3},
		{ExerciseIndex: 2, SetIndex: 0},
		{ExerciseIndex: 2, SetIndex: 1},
	}
	var got []workout.Cursor
	for range want {
		got = append(got, sess.Cursor)
		markCurrent(t, sess)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("visit order mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkSetDone_SupersetRest(t *testing.T) {
	sess := newSession(t, true,
		newExercise(7, "Bench Press", workout.GroupMember{GroupID: "A", GroupOrder: 1}, newSets(2, 8, ptr.Ref(80.0))),
		newExercise(12, "Bent-over Rows", workout.GroupMember{GroupID: "A", GroupOrder: 2},
			newSets(2, 8, ptr.Ref(60.0))),
	)

	if out := markCurrent(t, sess); out.RestSeconds != 0 {
		t.Errorf("rest within a round = %d, want 0", out.RestSeconds)
	}
	if out := markCurrent(t, sess); out.RestSeconds != 90 {
		t.Errorf("rest at the end of a round = %d, want 90", out.RestSeconds)
	}
}

func TestMarkSetDone_SingleMemberGroupIsSequential(t *testing.T) {
	sess := newSession(t, false,
		newExercise(7, "Bench Press", workout.GroupMember{GroupID: "solo", GroupOrder: 1},
			newSets(2, 8, ptr.Ref(80.0))),
		newExercise(12, "Bent-over Rows", workout.Standalone{}, newSets(1, 8, ptr.Ref(60.0))),
	)

	markCurrent(t, sess)
	if want := (workout.Cursor{ExerciseIndex: 0, SetIndex: 1}); sess.Cursor != want {
		t.Errorf("cursor = %+v, want %+v", sess.Cursor, want)
	}
}

func TestMarkSetDone_Idempotent(t *testing.T) {
	sess := newSession(t, true,
		newExercise(1, "Back Squat", workout.Standalone{}, newSets(3, 5, ptr.Ref(100.0))),
	)
	ev := workout.MarkSetDone{ExerciseIndex: 0, SetIndex: 0, PerformedReps: ptr.Ref(4), PerformedWeightKg: nil}

	if _, err := sess.Apply(ev, testNow); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	cursor, completed := sess.Cursor, sess.CompletedSets()

	out, err := sess.Apply(ev, testNow)
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if out.Changed {
		t.Errorf("second mark reported a change")
	}
	if sess.Cursor != cursor || sess.CompletedSets() != completed {
		t.Errorf("second mark moved cursor to %+v with %d done, want %+v with %d", sess.Cursor,
			sess.CompletedSets(), cursor, completed)
	}
	set := sess.Exercises[0].Sets[0]
	if *set.CompletedReps != 4 || *set.CompletedWeightKg != 100 {
		t.Errorf("completed = %d reps at %v kg, want 4 at 100", *set.CompletedReps, *set.CompletedWeightKg)
	}
}

func TestMarkSetDone_OutOfOrderWrapsAround(t *testing.T) {
	sess := newSession(t, false,
		newExercise(1, "Back Squat", workout.Standalone{}, newSets(1, 5, ptr.Ref(100.0))),
		newExercise(3, "Romanian Deadlift", workout.Standalone{}, newSets(1, 8, ptr.Ref(80.0))),
	)

	if _, err := sess.Apply(workout.Navigate{Direction: workout.DirectionNext}, testNow); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	markCurrent(t, sess)
	if want := (workout.Cursor{ExerciseIndex: 0, SetIndex: 0}); sess.Cursor != want {
		t.Errorf("cursor = %+v, want the skipped set %+v", sess.Cursor, want)
	}
}

func TestMarkSetDone_Errors(t *testing.T) {
	tests := []struct {
		name string
		ev   workout.MarkSetDone
		want error
	}{
		{
			name: "exercise out of range",
			ev:   workout.MarkSetDone{ExerciseIndex: 5, SetIndex: 0, PerformedReps: nil, PerformedWeightKg: nil},
			want: workout.ErrNotFound,
		},
		{
			name: "set out of range",
			ev:   workout.MarkSetDone{ExerciseIndex: 0, SetIndex: -1, PerformedReps: nil, PerformedWeightKg: nil},
			want: workout.ErrNotFound,
		},
		{
			name: "zero reps",
			ev:   workout.MarkSetDone{ExerciseIndex: 0, SetIndex: 0, PerformedReps: ptr.Ref(0), PerformedWeightKg: nil},
			want: workout.ErrValidation,
		},
		{
			name: "negative weight",
			ev: workout.MarkSetDone{
				ExerciseIndex: 0, SetIndex: 0, PerformedReps: nil, PerformedWeightKg: ptr.Ref(-5.0),
			},
			want: workout.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newSession(t, true,
				newExercise(1, "Back Squat", workout.Standalone{}, newSets(2, 5, ptr.Ref(100.0))))
			before := *sess

			_, err := sess.Apply(tt.ev, testNow)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Apply() error = %v, want %v", err, tt.want)
			}
			if diff := cmp.Diff(before, *sess); diff != "" {
				t.Errorf("failed event changed the session (-before +after):\n%s", diff)
			}
		})
	}
}

func TestUpdatePlannedWeight_SkipsDoneSets(t *testing.T) {
	sess := newSession(t, false,
		newExercise(1, "Back Squat", workout.Standalone{}, newSets(3, 5, ptr.Ref(100.0))))
	markCurrent(t, sess)

	out, err := sess.Apply(workout.UpdatePlannedWeight{ExerciseIndex: 0, FromSetIndex: 0, WeightKg: 105}, testNow)
	if err != nil {
		t.Fatalf("update planned weight: %v", err)
	}
	if !out.Changed {
		t.Errorf("want a change")
	}
	var got []float64
	for _, s := range sess.Exercises[0].Sets {
		got = append(got, *s.WeightKg)
	}
	if diff := cmp.Diff([]float64{100, 105, 105}, got); diff != "" {
		t.Errorf("planned weights mismatch (-want +got):\n%s", diff)
	}

	if _, err = sess.Apply(workout.UpdatePlannedWeight{ExerciseIndex: 0, FromSetIndex: 1, WeightKg: -1},
		testNow); !errors.Is(err, workout.ErrValidation) {
		t.Errorf("negative weight error = %v, want ErrValidation", err)
	}
}

func TestRecordEffortRating(t *testing.T) {
	tests := []struct {
		name string
		ei   int
		rir  int
		want error
	}{
		{name: "valid", ei: 0, rir: 2, want: nil},
		{name: "above range", ei: 0, rir: 5, want: workout.ErrValidation},
		{name: "below range", ei: 0, rir: -1, want: workout.ErrValidation},
		{name: "unweighted exercise", ei: 1, rir: 2, want: workout.ErrInvalidState},
		{name: "unknown exercise", ei: 7, rir: 2, want: workout.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newSession(t, false,
				newExercise(1, "Back Squat", workout.Standalone{}, newSets(1, 5, ptr.Ref(100.0))),
				newExercise(9, "Push-ups", workout.Standalone{}, newSets(1, 15, nil)),
			)
			out, err := sess.Apply(workout.RecordEffortRating{ExerciseIndex: tt.ei, RIR: tt.rir}, testNow)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Apply() error = %v, want %v", err, tt.want)
			}
			if tt.want == nil && len(out.OwedRatings) != 0 {
				t.Errorf("OwedRatings = %v, want none", out.OwedRatings)
			}
		})
	}
}

func TestComplete(t *testing.T) {
	sess := newSession(t, false,
		newExercise(1, "Back Squat", workout.Standalone{}, newSets(1, 5, ptr.Ref(100.0))),
		newExercise(9, "Push-ups", workout.Standalone{}, newSets(1, 15, nil)),
	)
	markCurrent(t, sess)
	markCurrent(t, sess)

	if _, err := sess.Apply(workout.Complete{}, testNow); !errors.Is(err, workout.ErrInvalidState) {
		t.Fatalf("complete with owed rating error = %v, want ErrInvalidState", err)
	}
	if _, err := sess.Apply(workout.RecordEffortRating{ExerciseIndex: 0, RIR: 3}, testNow); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := sess.Apply(workout.Complete{}, testNow); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if sess.Status != workout.StatusCompleted || sess.CompletedAt == nil || !sess.CompletedAt.Equal(testNow) {
		t.Errorf("status %s completed at %v, want completed at %v", sess.Status, sess.CompletedAt, testNow)
	}

	events := []workout.Event{
		workout.MarkSetDone{ExerciseIndex: 0, SetIndex: 0, PerformedReps: nil, PerformedWeightKg: nil},
		workout.RecordEffortRating{ExerciseIndex: 0, RIR: 1},
		workout.Navigate{Direction: workout.DirectionPrevious},
		workout.Complete{},
	}
	for _, ev := range events {
		if _, err := sess.Apply(ev, testNow); !errors.Is(err, workout.ErrInvalidState) {
			t.Errorf("%T on completed session error = %v, want ErrInvalidState", ev, err)
		}
	}
}

func TestNavigate_Bounds(t *testing.T) {
	sess := newSession(t, false,
		newExercise(1, "Back Squat", workout.Standalone{}, newSets(2, 5, ptr.Ref(100.0))),
		newExercise(3, "Romanian Deadlift", workout.Standalone{}, newSets(1, 8, ptr.Ref(80.0))),
	)
	step := func(d workout.Direction) workout.Outcome {
		t.Helper()
		out, err := sess.Apply(workout.Navigate{Direction: d}, testNow)
		if err != nil {
			t.Fatalf("navigate %s: %v", d, err)
		}
		return out
	}

	if out := step(workout.DirectionPrevious); out.Changed {
		t.Errorf("moved before the first set")
	}
	step(workout.DirectionNext)
	step(workout.DirectionNext)
	if want := (workout.Cursor{ExerciseIndex: 1, SetIndex: 0}); sess.Cursor != want {
		t.Errorf("cursor = %+v, want %+v", sess.Cursor, want)
	}
	if out := step(workout.DirectionNext); out.Changed {
		t.Errorf("moved past the last set")
	}
	step(workout.DirectionPrevious)
	if want := (workout.Cursor{ExerciseIndex: 0, SetIndex: 1}); sess.Cursor != want {
		t.Errorf("cursor = %+v, want %+v", sess.Cursor, want)
	}
	if sess.CompletedSets() != 0 {
		t.Errorf("navigation marked sets done")
	}

	if _, err := sess.Apply(workout.Navigate{Direction: "sideways"}, testNow); !errors.Is(err, workout.ErrValidation) {
		t.Errorf("unknown direction error = %v, want ErrValidation", err)
	}
}
