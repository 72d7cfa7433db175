// Package strength estimates one-rep maxes and working weights with the Epley formula.
package strength

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// BasisType tags what a known weight represents.
type BasisType string

const (
	// BasisOneRepMax is a direct one-rep-max estimate.
	BasisOneRepMax BasisType = "1rm"
	// BasisWorking is the weight of a moderate working set, assumed to be WorkingReps reps.
	BasisWorking BasisType = "working"
)

// WorkingReps is the canonical rep count assumed for a working weight.
const WorkingReps = 10

const epleyDivisor = 30.0

// ErrInvalidInput is returned for non-positive or non-finite weights and rep counts.
var ErrInvalidInput = errors.New("invalid strength input")

// ParseBasisType parses "1rm" or "working".
func ParseBasisType(s string) (BasisType, error) {
	switch BasisType(strings.ToLower(strings.TrimSpace(s))) {
	case BasisOneRepMax:
		return BasisOneRepMax, nil
	case BasisWorking:
		return BasisWorking, nil
	default:
		return "", fmt.Errorf("parse basis type %q: %w", s, ErrInvalidInput)
	}
}

// EstimateOneRepMax returns the one-rep max implied by weight. A 1rm basis is returned unchanged and a working basis
// is treated as a set of WorkingReps reps.
func EstimateOneRepMax(weight float64, basis BasisType) (float64, error) {
	if err := validWeight(weight); err != nil {
		return 0, err
	}
	switch basis {
	case BasisOneRepMax:
		return weight, nil
	case BasisWorking:
		return epley(weight, WorkingReps), nil
	default:
		return 0, fmt.Errorf("unknown basis type %q: %w", basis, ErrInvalidInput)
	}
}

// EstimateOneRepMaxFromReps returns the one-rep max implied by lifting weight for reps repetitions.
func EstimateOneRepMaxFromReps(weight float64, reps int) (float64, error) {
	if err := validWeight(weight); err != nil {
		return 0, err
	}
	if reps <= 0 {
		return 0, fmt.Errorf("reps %d: %w", reps, ErrInvalidInput)
	}
	return epley(weight, float64(reps)), nil
}

// SuggestWeightForReps returns the unrounded weight expected to be liftable for targetReps repetitions.
// It is strictly decreasing in targetReps.
func SuggestWeightForReps(oneRM, targetReps float64) (float64, error) {
	if err := validWeight(oneRM); err != nil {
		return 0, err
	}
	if targetReps <= 0 || math.IsNaN(targetReps) || math.IsInf(targetReps, 0) {
		return 0, fmt.Errorf("target reps %v: %w", targetReps, ErrInvalidInput)
	}
	return oneRM / (1 + targetReps/epleyDivisor), nil
}

// ConvertBasis re-expresses weight given as from in terms of to. Used to prefill an assessment question asking for a
// different kind of value than the one on record.
func ConvertBasis(weight float64, from, to BasisType) (float64, error) {
	oneRM, err := EstimateOneRepMax(weight, from)
	if err != nil {
		return 0, err
	}
	switch to {
	case BasisOneRepMax:
		return oneRM, nil
	case BasisWorking:
		return SuggestWeightForReps(oneRM, WorkingReps)
	default:
		return 0, fmt.Errorf("unknown basis type %q: %w", to, ErrInvalidInput)
	}
}

// AverageReps returns the mean of reps, or 0 when reps is empty.
func AverageReps(reps []int) float64 {
	if len(reps) == 0 {
		return 0
	}
	total := 0
	for _, r := range reps {
		total += r
	}
	return float64(total) / float64(len(reps))
}

func epley(weight, reps float64) float64 {
	return weight * (1 + reps/epleyDivisor)
}

func validWeight(w float64) error {
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("weight %v: %w", w, ErrInvalidInput)
	}
	return nil
}
