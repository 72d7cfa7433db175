// Package weights converts between kilograms and pounds and rounds raw weights to loadable gym increments.
//
// Both Convert and RoundToIncrement floor their input at zero: a negative or non-finite weight is treated as 0 and
// the functions never return a negative number.
package weights

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Unit is a weight unit.
type Unit string

const (
	UnitKg  Unit = "kg"
	UnitLbs Unit = "lbs"
)

// LbsPerKg is the kilogram to pound conversion factor.
const LbsPerKg = 2.20462

const (
	DefaultIncrementKg  = 2.5
	DefaultIncrementLbs = 5.0
	// DumbbellIncrement reflects common fixed dumbbell spacing in either unit system.
	DumbbellIncrement = 5.0
)

// ErrUnknownUnit is returned by ParseUnit for anything other than kg or lbs.
var ErrUnknownUnit = errors.New("unknown weight unit")

// ParseUnit parses a unit name case-insensitively. "lb" is accepted as an alias for lbs.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kg", "kgs":
		return UnitKg, nil
	case "lb", "lbs":
		return UnitLbs, nil
	default:
		return "", fmt.Errorf("parse unit %q: %w", s, ErrUnknownUnit)
	}
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == UnitKg || u == UnitLbs
}

// Convert converts value from one unit to another. Rounding is left to the caller.
func Convert(value float64, from, to Unit) float64 {
	value = floorZero(value)
	if from == to {
		return value
	}
	switch {
	case from == UnitKg && to == UnitLbs:
		return value * LbsPerKg
	case from == UnitLbs && to == UnitKg:
		return value / LbsPerKg
	default:
		return value
	}
}

// ToKg converts value in unit to kilograms.
func ToKg(value float64, unit Unit) float64 {
	return Convert(value, unit, UnitKg)
}

// Increments holds the rounding step per unit system.
type Increments struct {
	Kg  float64
	Lbs float64
}

// DefaultIncrements are used for barbell, machine and cable work.
func DefaultIncrements() Increments {
	return Increments{Kg: DefaultIncrementKg, Lbs: DefaultIncrementLbs}
}

// DumbbellIncrements are used for dumbbell work.
func DumbbellIncrements() Increments {
	return Increments{Kg: DumbbellIncrement, Lbs: DumbbellIncrement}
}

// For returns the step for unit, falling back to the unit default when the configured step is not positive.
func (i Increments) For(unit Unit) float64 {
	if unit == UnitLbs {
		if i.Lbs > 0 && !math.IsInf(i.Lbs, 0) {
			return i.Lbs
		}
		return DefaultIncrementLbs
	}
	if i.Kg > 0 && !math.IsInf(i.Kg, 0) {
		return i.Kg
	}
	return DefaultIncrementKg
}

// RoundToIncrement rounds weight, expressed in unit, to the nearest multiple of the unit's increment.
// The result is stable under repeated application.
func RoundToIncrement(weight float64, inc Increments, unit Unit) float64 {
	weight = floorZero(weight)
	step := inc.For(unit)
	rounded := math.Round(weight/step) * step
	if rounded <= 0 {
		// Normalises -0.
		return 0
	}
	return rounded
}

func floorZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
