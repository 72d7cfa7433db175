package workout_test

import (
	"errors"
	"testing"

	"github.com/camziny/z-fit-2.0/internal/ptr"
	"github.com/camziny/z-fit-2.0/internal/workout"
)

func TestNextPlannedWeightKg(t *testing.T) {
	tests := []struct {
		rir     int
		want    float64
		wantErr error
	}{
		{rir: 4, want: 65, wantErr: nil},
		{rir: 3, want: 62.5, wantErr: nil},
		{rir: 2, want: 62.5, wantErr: nil},
		{rir: 1, want: 62.5, wantErr: nil},
		{rir: 0, want: 60, wantErr: nil},
		{rir: 5, want: 0, wantErr: workout.ErrValidation},
		{rir: -1, want: 0, wantErr: workout.ErrValidation},
	}
	for _, tt := range tests {
		got, err := workout.NextPlannedWeightKg(60, tt.rir)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("NextPlannedWeightKg(60, %d) error = %v, want %v", tt.rir, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NextPlannedWeightKg(60, %d) = %v, want %v", tt.rir, got, tt.want)
		}
	}
}

func TestLastCompletedWeightKg(t *testing.T) {
	t.Run("performed weight of last done set", func(t *testing.T) {
		ex := newExercise(1, "Back Squat", workout.Standalone{}, newSets(3, 5, ptr.Ref(100.0)))
		ex.Sets[0].Done = true
		ex.Sets[1].Done = true
		ex.Sets[1].CompletedWeightKg = ptr.Ref(102.5)

		got, ok := workout.LastCompletedWeightKg(ex)
		if !ok || got != 102.5 {
			t.Errorf("LastCompletedWeightKg() = %v, %v, want 102.5, true", got, ok)
		}
	})

	t.Run("planned weight without done sets", func(t *testing.T) {
		ex := newExercise(1, "Back Squat", workout.Standalone{}, newSets(2, 5, ptr.Ref(100.0)))
		ex.Sets[1].WeightKg = ptr.Ref(105.0)

		got, ok := workout.LastCompletedWeightKg(ex)
		if !ok || got != 105 {
			t.Errorf("LastCompletedWeightKg() = %v, %v, want 105, true", got, ok)
		}
	})

	t.Run("no weight at all", func(t *testing.T) {
		ex := newExercise(9, "Push-ups", workout.Standalone{}, newSets(2, 15, nil))
		if got, ok := workout.LastCompletedWeightKg(ex); ok {
			t.Errorf("LastCompletedWeightKg() = %v, want nothing", got)
		}
	})
}
