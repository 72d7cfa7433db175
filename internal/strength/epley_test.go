package strength_test

import (
	"errors"
	"math"
	"testing"

	"github.com/camziny/z-fit-2.0/internal/strength"
	"github.com/camziny/z-fit-2.0/internal/weights"
)

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestEstimateOneRepMax(t *testing.T) {
	got, err := strength.EstimateOneRepMax(100, strength.BasisWorking)
	if err != nil {
		t.Fatalf("EstimateOneRepMax: %v", err)
	}
	if !approx(got, 133.333, 0.001) {
		t.Errorf("EstimateOneRepMax(100, working) = %v, want ~133.333", got)
	}

	got, err = strength.EstimateOneRepMax(120, strength.BasisOneRepMax)
	if err != nil {
		t.Fatalf("EstimateOneRepMax: %v", err)
	}
	if got != 120 {
		t.Errorf("EstimateOneRepMax(120, 1rm) = %v, want 120", got)
	}
}

func TestEpleyScenario(t *testing.T) {
	oneRM, err := strength.EstimateOneRepMax(100, strength.BasisWorking)
	if err != nil {
		t.Fatalf("EstimateOneRepMax: %v", err)
	}
	raw, err := strength.SuggestWeightForReps(oneRM, 5)
	if err != nil {
		t.Fatalf("SuggestWeightForReps: %v", err)
	}
	if !approx(raw, 114.3, 0.05) {
		t.Errorf("SuggestWeightForReps(%v, 5) = %v, want ~114.3", oneRM, raw)
	}
	if got := weights.RoundToIncrement(raw, weights.DumbbellIncrements(), weights.UnitKg); got != 115 {
		t.Errorf("dumbbell rounding = %v, want 115", got)
	}
	if got := weights.RoundToIncrement(raw, weights.DefaultIncrements(), weights.UnitKg); got != 112.5 && got != 115 {
		t.Errorf("barbell rounding = %v, want 112.5 or 115", got)
	}
}

func TestSuggestWeightForReps_Monotonic(t *testing.T) {
	for _, oneRM := range []float64{20, 60, 133.3, 250} {
		prev := math.Inf(1)
		for reps := 1.0; reps <= 30; reps++ {
			got, err := strength.SuggestWeightForReps(oneRM, reps)
			if err != nil {
				t.Fatalf("SuggestWeightForReps(%v, %v): %v", oneRM, reps, err)
			}
			if got >= prev {
				t.Fatalf("SuggestWeightForReps(%v, %v) = %v, not below %v", oneRM, reps, got, prev)
			}
			prev = got
		}
	}
}

func TestInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{name: "zero weight", fn: func() error { _, err := strength.EstimateOneRepMax(0, strength.BasisWorking); return err }},
		{name: "negative weight", fn: func() error { _, err := strength.EstimateOneRepMax(-5, strength.BasisOneRepMax); return err }},
		{name: "NaN weight", fn: func() error { _, err := strength.EstimateOneRepMax(math.NaN(), strength.BasisOneRepMax); return err }},
		{name: "unknown basis", fn: func() error { _, err := strength.EstimateOneRepMax(50, "max"); return err }},
		{name: "zero reps", fn: func() error { _, err := strength.SuggestWeightForReps(100, 0); return err }},
		{name: "infinite reps", fn: func() error { _, err := strength.SuggestWeightForReps(100, math.Inf(1)); return err }},
		{name: "infinite one rep max", fn: func() error { _, err := strength.SuggestWeightForReps(math.Inf(1), 5); return err }},
		{name: "negative reps", fn: func() error { _, err := strength.EstimateOneRepMaxFromReps(100, -1); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, strength.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestConvertBasis(t *testing.T) {
	oneRM, err := strength.ConvertBasis(90, strength.BasisWorking, strength.BasisOneRepMax)
	if err != nil {
		t.Fatalf("ConvertBasis: %v", err)
	}
	if !approx(oneRM, 120, 1e-9) {
		t.Errorf("working 90 as 1rm = %v, want 120", oneRM)
	}
	working, err := strength.ConvertBasis(oneRM, strength.BasisOneRepMax, strength.BasisWorking)
	if err != nil {
		t.Fatalf("ConvertBasis: %v", err)
	}
	if !approx(working, 90, 1e-9) {
		t.Errorf("1rm 120 as working = %v, want 90", working)
	}
}

func TestAverageReps(t *testing.T) {
	if got := strength.AverageReps(nil); got != 0 {
		t.Errorf("AverageReps(nil) = %v, want 0", got)
	}
	if got := strength.AverageReps([]int{10, 8, 6, 4, 4}); got != 6.4 {
		t.Errorf("AverageReps = %v, want 6.4", got)
	}
}

func TestParseBasisType(t *testing.T) {
	if got, err := strength.ParseBasisType("1RM"); err != nil || got != strength.BasisOneRepMax {
		t.Errorf("ParseBasisType(1RM) = %q, %v", got, err)
	}
	if _, err := strength.ParseBasisType("max"); !errors.Is(err, strength.ErrInvalidInput) {
		t.Errorf("ParseBasisType(max) error = %v, want ErrInvalidInput", err)
	}
}
