package workout

import (
	"fmt"

	"github.com/camziny/z-fit-2.0/internal/family"
	"github.com/camziny/z-fit-2.0/internal/strength"
	"github.com/camziny/z-fit-2.0/internal/weights"
)

// Source names where a weight basis came from.
type Source string

const (
	SourceSessionAssessment Source = "session_assessment"
	SourceAssessment        Source = "assessment"
	SourceProfile           Source = "profile"
	SourceLastCompleted     Source = "last_completed"
	SourceFamily            Source = "family"
	SourceNone              Source = "none"
)

// Basis is the data point fed to the strength estimator. Value is in kilograms.
type Basis struct {
	Value  float64            `json:"value"`
	Type   strength.BasisType `json:"type"`
	Unit   weights.Unit       `json:"unit"`
	Source Source             `json:"source"`
	// DonorExerciseID is set for family estimates.
	DonorExerciseID int `json:"donorExerciseId,omitempty"`
}

// ResolverInputs holds everything known about an owner for the exercises of one template.
type ResolverInputs struct {
	// Transient holds assessments entered while setting up the current session, in template order.
	Transient []AssessmentInput
	// Assessments maps exercise id to the newest stored assessment.
	Assessments map[int]Assessment
	// Profiles maps exercise id to the signed-in owner's progression profile.
	Profiles map[int]ProgressionProfile
	// CompletedWeights maps exercise id to the most recently lifted weight in kilograms.
	CompletedWeights map[int]float64
}

func (in ResolverInputs) transient(exerciseID int) (AssessmentInput, bool) {
	for _, a := range in.Transient {
		if a.ExerciseID == exerciseID {
			return a, true
		}
	}
	return AssessmentInput{}, false
}

// Resolver picks the best available basis for an exercise.
type Resolver struct {
	families *family.Table
	catalog  map[int]Exercise
}

// NewResolver creates a Resolver. catalog is used to name donor exercises for family estimates.
func NewResolver(families *family.Table, catalog map[int]Exercise) *Resolver {
	return &Resolver{families: families, catalog: catalog}
}

// Resolve returns the basis for ex within a template of bodyPart. Sources are tried in order: an assessment from the
// current session setup, the newest stored assessment, the progression profile, the last completed weight and
// finally a scaled assessment of a same-family exercise from the current session setup. ok is false when nothing
// is known, which is not an error.
func (r *Resolver) Resolve(ex Exercise, bodyPart string, in ResolverInputs) (Basis, bool) {
	if a, ok := in.transient(ex.ID); ok {
		return Basis{Value: a.ValueKg(), Type: a.Type, Unit: weights.UnitKg, Source: SourceSessionAssessment}, true
	}
	if a, ok := in.Assessments[ex.ID]; ok {
		return Basis{Value: a.ValueKg(), Type: a.Type, Unit: weights.UnitKg, Source: SourceAssessment}, true
	}
	if p, ok := in.Profiles[ex.ID]; ok && p.NextPlannedWeightKg > 0 {
		return Basis{
			Value:  p.NextPlannedWeightKg,
			Type:   strength.BasisWorking,
			Unit:   weights.UnitKg,
			Source: SourceProfile,
		}, true
	}
	if w, ok := in.CompletedWeights[ex.ID]; ok && w > 0 {
		return Basis{Value: w, Type: strength.BasisWorking, Unit: weights.UnitKg, Source: SourceLastCompleted}, true
	}
	return r.resolveFromFamily(ex, bodyPart, in.Transient)
}

func (r *Resolver) resolveFromFamily(ex Exercise, bodyPart string, donors []AssessmentInput) (Basis, bool) {
	if r.families == nil {
		return Basis{}, false
	}
	fam := r.families.Classify(bodyPart, ex.Name)
	if fam == family.None {
		return Basis{}, false
	}
	for _, d := range donors {
		donor, ok := r.catalog[d.ExerciseID]
		if !ok || donor.ID == ex.ID {
			continue
		}
		if r.families.Classify(bodyPart, donor.Name) != fam {
			continue
		}
		return Basis{
			Value:           d.ValueKg() * r.families.Factor(fam),
			Type:            d.Type,
			Unit:            weights.UnitKg,
			Source:          SourceFamily,
			DonorExerciseID: donor.ID,
		}, true
	}
	return Basis{}, false
}

// PlanWeightKg turns a basis into a rounded working weight for sets averaging targetReps repetitions.
func PlanWeightKg(b Basis, targetReps float64, inc weights.Increments) (float64, error) {
	oneRM, err := strength.EstimateOneRepMax(weights.ToKg(b.Value, b.Unit), b.Type)
	if err != nil {
		return 0, fmt.Errorf("estimate one rep max: %w", err)
	}
	raw, err := strength.SuggestWeightForReps(oneRM, targetReps)
	if err != nil {
		return 0, fmt.Errorf("suggest weight for %v reps: %w", targetReps, err)
	}
	return weights.RoundToIncrement(raw, inc, weights.UnitKg), nil
}

// averageTargetReps returns the mean planned reps of a template item.
func averageTargetReps(item TemplateItem) float64 {
	reps := make([]int, len(item.Sets))
	for i, s := range item.Sets {
		reps[i] = s.Reps
	}
	return strength.AverageReps(reps)
}
