package workout

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/camziny/z-fit-2.0/internal/ptr"
)

// BuildInput is everything BuildSession needs. PlannedWeightsKg holds the resolver-derived weight per exercise id and
// OverridesKg the caller-supplied weights, which win over everything else.
type BuildInput struct {
	ID               string
	Owner            OwnerRef
	Template         Template
	Catalog          map[int]Exercise
	OverridesKg      map[int]float64
	PlannedWeightsKg map[int]float64
	RestEnabled      bool
	Now              time.Time
}

// BuildSession materialises a template into an active session. Given identical input it always produces the same
// session.
func BuildSession(in BuildInput) (Session, error) {
	if err := in.Owner.Validate(); err != nil {
		return Session{}, err
	}
	if len(in.Template.Items) == 0 {
		return Session{}, fmt.Errorf("template %d has no items: %w", in.Template.ID, ErrValidation)
	}

	items := slices.Clone(in.Template.Items)
	slices.SortStableFunc(items, func(a, b TemplateItem) int {
		return cmp.Compare(a.Order, b.Order)
	})

	exercises := make([]SessionExercise, 0, len(items))
	for _, item := range items {
		ex, ok := in.Catalog[item.ExerciseID]
		if !ok {
			return Session{}, fmt.Errorf("template %d exercise %d: %w", in.Template.ID, item.ExerciseID, ErrNotFound)
		}
		if len(item.Sets) == 0 {
			return Session{}, fmt.Errorf("template %d exercise %s has no sets: %w", in.Template.ID, ex.Name,
				ErrValidation)
		}
		snapshot, err := snapshotExercise(ex, item, in.OverridesKg, in.PlannedWeightsKg)
		if err != nil {
			return Session{}, err
		}
		exercises = append(exercises, snapshot)
	}

	return Session{
		ID:          in.ID,
		Owner:       in.Owner,
		TemplateID:  in.Template.ID,
		Status:      StatusActive,
		StartedAt:   in.Now,
		CompletedAt: nil,
		Cursor:      Cursor{ExerciseIndex: 0, SetIndex: 0},
		RestEnabled: in.RestEnabled,
		Exercises:   exercises,
		Version:     1,
	}, nil
}

func snapshotExercise(
	ex Exercise,
	item TemplateItem,
	overrides map[int]float64,
	planned map[int]float64,
) (SessionExercise, error) {
	loadBasis := LoadExternal
	if !ex.IsWeighted {
		loadBasis = LoadBodyweight
	}

	var weight *float64
	override, hasOverride := overrides[ex.ID]
	switch {
	case hasOverride:
		if !validPlannedWeight(override) {
			return SessionExercise{}, fmt.Errorf("override for %s %v: %w", ex.Name, override, ErrValidation)
		}
		switch {
		case ex.IsWeighted:
			weight = ptr.Ref(override)
		case override > 0:
			weight = ptr.Ref(override)
			loadBasis = LoadBodyweightPlus
		}
	case ex.IsWeighted:
		if w, ok := planned[ex.ID]; ok {
			weight = ptr.Ref(w)
		}
	}

	sets := make([]SessionSet, len(item.Sets))
	for j, ps := range item.Sets {
		if ps.Reps <= 0 {
			return SessionExercise{}, fmt.Errorf("%s set %d reps %d: %w", ex.Name, j, ps.Reps, ErrValidation)
		}
		w := ptr.Clone(weight)
		if w == nil && ex.IsWeighted {
			w = ptr.Clone(ps.WeightKg)
		}
		sets[j] = SessionSet{
			TargetReps:        ps.Reps,
			WeightKg:          w,
			Done:              false,
			CompletedAt:       nil,
			CompletedReps:     nil,
			CompletedWeightKg: nil,
		}
	}

	return SessionExercise{
		ExerciseID:  ex.ID,
		Name:        ex.Name,
		Equipment:   ex.Equipment,
		LoadingMode: ex.LoadingMode,
		LoadBasis:   loadBasis,
		RestSeconds: ptr.Deref(item.Sets[0].RestSeconds, 0),
		Grouping:    NewGrouping(item.GroupID, item.GroupOrder),
		Sets:        sets,
		RIR:         nil,
	}, nil
}
