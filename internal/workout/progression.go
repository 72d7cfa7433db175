package workout

import (
	"fmt"
	"time"
)

const (
	easyIncrementKg     = 5.0
	moderateIncrementKg = 2.5
)

// NextPlannedWeightKg applies the autoregulation rule: 4 reps in reserve adds 5 kg, 1 to 3 add 2.5 kg and 0 keeps
// the weight.
func NextPlannedWeightKg(lastCompletedWeightKg float64, rir int) (float64, error) {
	if rir < minRIR || rir > maxRIR {
		return 0, fmt.Errorf("rir %d outside %d..%d: %w", rir, minRIR, maxRIR, ErrValidation)
	}
	if lastCompletedWeightKg < 0 {
		return 0, fmt.Errorf("last completed weight %v: %w", lastCompletedWeightKg, ErrValidation)
	}
	switch {
	case rir >= maxRIR:
		return lastCompletedWeightKg + easyIncrementKg, nil
	case rir > minRIR:
		return lastCompletedWeightKg + moderateIncrementKg, nil
	default:
		return lastCompletedWeightKg, nil
	}
}

// LastCompletedWeightKg returns the weight of the exercise's most recent done set, preferring the performed weight
// over the planned one. Exercises without done sets fall back to the last set with a planned weight.
func LastCompletedWeightKg(ex SessionExercise) (float64, bool) {
	for j := len(ex.Sets) - 1; j >= 0; j-- {
		if !ex.Sets[j].Done {
			continue
		}
		if w, ok := ex.Sets[j].resolvedWeightKg(); ok {
			return w, true
		}
	}
	for j := len(ex.Sets) - 1; j >= 0; j-- {
		if w, ok := ex.Sets[j].resolvedWeightKg(); ok {
			return w, true
		}
	}
	return 0, false
}

// progressionFor computes the profile an effort rating on ex produces.
func progressionFor(userID int, ex SessionExercise, rir int, now time.Time) (ProgressionProfile, error) {
	last, ok := LastCompletedWeightKg(ex)
	if !ok {
		return ProgressionProfile{}, fmt.Errorf("no resolved weight for %s: %w", ex.Name, ErrInvalidState)
	}
	next, err := NextPlannedWeightKg(last, rir)
	if err != nil {
		return ProgressionProfile{}, err
	}
	return ProgressionProfile{
		UserID:                userID,
		ExerciseID:            ex.ExerciseID,
		LastCompletedWeightKg: last,
		LastRIR:               rir,
		NextPlannedWeightKg:   next,
		UpdatedAt:             now,
	}, nil
}
