package workout_test

import (
	"errors"
	"testing"

	"github.com/camziny/z-fit-2.0/internal/ptr"
	"github.com/camziny/z-fit-2.0/internal/workout"
	"github.com/google/go-cmp/cmp"
)

func testCatalog() map[int]workout.Exercise {
	exercise := func(id int, name, bodyPart string, weighted bool, eq workout.Equipment) workout.Exercise {
		return workout.Exercise{
			ID:                   id,
			Name:                 name,
			BodyPart:             bodyPart,
			Description:          "",
			IsWeighted:           weighted,
			Equipment:            eq,
			LoadingMode:          workout.LoadingBar,
			RoundingIncrementKg:  nil,
			RoundingIncrementLbs: nil,
		}
	}
	return map[int]workout.Exercise{
		1:  exercise(1, "Back Squat", "legs", true, workout.EquipmentBarbell),
		7:  exercise(7, "Bench Press", "chest", true, workout.EquipmentBarbell),
		8:  exercise(8, "Incline Dumbbell Press", "chest", true, workout.EquipmentDumbbell),
		9:  exercise(9, "Push-ups", "chest", false, workout.EquipmentBodyweight),
		12: exercise(12, "Bent-over Rows", "back", true, workout.EquipmentBarbell),
		18: exercise(18, "Overhead Press", "shoulders", true, workout.EquipmentBarbell),
	}
}

func plannedSets(weightKg *float64, reps ...int) []workout.PlannedSet {
	sets := make([]workout.PlannedSet, len(reps))
	for i, r := range reps {
		sets[i] = workout.PlannedSet{Reps: r, WeightKg: ptr.Clone(weightKg), RestSeconds: ptr.Ref(120)}
	}
	return sets
}

func chestTemplateFixture() workout.Template {
	return workout.Template{
		ID:          3,
		Name:        "Chest",
		Description: "",
		BodyPart:    "chest",
		Items: []workout.TemplateItem{
			// Deliberately out of order.
			{ExerciseID: 9, Order: 3, GroupID: "", GroupOrder: 0, Sets: plannedSets(nil, 15, 12)},
			{ExerciseID: 7, Order: 1, GroupID: "", GroupOrder: 0, Sets: plannedSets(ptr.Ref(60.0), 8, 6, 5)},
			{ExerciseID: 8, Order: 2, GroupID: "", GroupOrder: 0, Sets: plannedSets(ptr.Ref(20.0), 10, 8)},
		},
	}
}

func buildInput() workout.BuildInput {
	return workout.BuildInput{
		ID:               "s1",
		Owner:            workout.UserOwner(1),
		Template:         chestTemplateFixture(),
		Catalog:          testCatalog(),
		OverridesKg:      nil,
		PlannedWeightsKg: nil,
		RestEnabled:      true,
		Now:              testNow,
	}
}

func firstWeights(sess workout.Session) []*float64 {
	out := make([]*float64, len(sess.Exercises))
	for i, ex := range sess.Exercises {
		out[i] = ex.Sets[0].WeightKg
	}
	return out
}

func TestBuildSession_WeightPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[int]float64
		planned   map[int]float64
		want      []*float64
		wantBasis []workout.LoadBasis
	}{
		{
			name:      "template weights",
			overrides: nil,
			planned:   nil,
			want:      []*float64{ptr.Ref(60.0), ptr.Ref(20.0), nil},
			wantBasis: []workout.LoadBasis{workout.LoadExternal, workout.LoadExternal, workout.LoadBodyweight},
		},
		{
			name:      "planned beats template",
			overrides: nil,
			planned:   map[int]float64{7: 110},
			want:      []*float64{ptr.Ref(110.0), ptr.Ref(20.0), nil},
			wantBasis: []workout.LoadBasis{workout.LoadExternal, workout.LoadExternal, workout.LoadBodyweight},
		},
		{
			name:      "override beats planned",
			overrides: map[int]float64{7: 95, 9: 10},
			planned:   map[int]float64{7: 110, 8: 25},
			want:      []*float64{ptr.Ref(95.0), ptr.Ref(25.0), ptr.Ref(10.0)},
			wantBasis: []workout.LoadBasis{workout.LoadExternal, workout.LoadExternal, workout.LoadBodyweightPlus},
		},
		{
			name:      "zero override on bodyweight exercise",
			overrides: map[int]float64{9: 0},
			planned:   nil,
			want:      []*float64{ptr.Ref(60.0), ptr.Ref(20.0), nil},
			wantBasis: []workout.LoadBasis{workout.LoadExternal, workout.LoadExternal, workout.LoadBodyweight},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := buildInput()
			in.OverridesKg = tt.overrides
			in.PlannedWeightsKg = tt.planned

			sess, err := workout.BuildSession(in)
			if err != nil {
				t.Fatalf("BuildSession: %v", err)
			}
			if diff := cmp.Diff(tt.want, firstWeights(sess)); diff != "" {
				t.Errorf("weights mismatch (-want +got):\n%s", diff)
			}
			var basis []workout.LoadBasis
			for _, ex := range sess.Exercises {
				basis = append(basis, ex.LoadBasis)
			}
			if diff := cmp.Diff(tt.wantBasis, basis); diff != "" {
				t.Errorf("load basis mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildSession_Snapshot(t *testing.T) {
	sess, err := workout.BuildSession(buildInput())
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}

	var names []string
	for _, ex := range sess.Exercises {
		names = append(names, ex.Name)
	}
	if diff := cmp.Diff([]string{"Bench Press", "Incline Dumbbell Press", "Push-ups"}, names); diff != "" {
		t.Errorf("exercise order mismatch (-want +got):\n%s", diff)
	}
	if sess.Status != workout.StatusActive || !sess.StartedAt.Equal(testNow) || sess.Version != 1 {
		t.Errorf("got status %s started %v version %d", sess.Status, sess.StartedAt, sess.Version)
	}
	if sess.CompletedSets() != 0 || sess.TotalSets() != 7 {
		t.Errorf("got %d of %d sets done, want 0 of 7", sess.CompletedSets(), sess.TotalSets())
	}
	if sess.Exercises[0].RestSeconds != 120 {
		t.Errorf("rest = %d, want 120", sess.Exercises[0].RestSeconds)
	}

	again, err := workout.BuildSession(buildInput())
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	if diff := cmp.Diff(sess, again); diff != "" {
		t.Errorf("BuildSession is not deterministic (-first +second):\n%s", diff)
	}
}

func TestBuildSession_Grouping(t *testing.T) {
	in := buildInput()
	in.Template.Items = []workout.TemplateItem{
		{ExerciseID: 7, Order: 1, GroupID: "A", GroupOrder: 1, Sets: plannedSets(nil, 8)},
		{ExerciseID: 12, Order: 2, GroupID: "A", GroupOrder: 2, Sets: plannedSets(nil, 8)},
		{ExerciseID: 9, Order: 3, GroupID: "", GroupOrder: 0, Sets: plannedSets(nil, 12)},
	}
	sess, err := workout.BuildSession(in)
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	want := []workout.Grouping{
		workout.GroupMember{GroupID: "A", GroupOrder: 1},
		workout.GroupMember{GroupID: "A", GroupOrder: 2},
		workout.Standalone{},
	}
	var got []workout.Grouping
	for _, ex := range sess.Exercises {
		got = append(got, ex.Grouping)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("grouping mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSession_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(in *workout.BuildInput)
		want   error
	}{
		{
			name:   "no items",
			modify: func(in *workout.BuildInput) { in.Template.Items = nil },
			want:   workout.ErrValidation,
		},
		{
			name:   "exercise with zero sets",
			modify: func(in *workout.BuildInput) { in.Template.Items[0].Sets = nil },
			want:   workout.ErrValidation,
		},
		{
			name:   "non-positive reps",
			modify: func(in *workout.BuildInput) { in.Template.Items[1].Sets[0].Reps = 0 },
			want:   workout.ErrValidation,
		},
		{
			name:   "unknown exercise",
			modify: func(in *workout.BuildInput) { delete(in.Catalog, 8) },
			want:   workout.ErrNotFound,
		},
		{
			name:   "negative override",
			modify: func(in *workout.BuildInput) { in.OverridesKg = map[int]float64{7: -10} },
			want:   workout.ErrValidation,
		},
		{
			name:   "no owner",
			modify: func(in *workout.BuildInput) { in.Owner = workout.OwnerRef{UserID: 0, AnonKey: ""} },
			want:   workout.ErrValidation,
		},
		{
			name:   "two owners",
			modify: func(in *workout.BuildInput) { in.Owner = workout.OwnerRef{UserID: 1, AnonKey: "anon"} },
			want:   workout.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := buildInput()
			tt.modify(&in)
			if _, err := workout.BuildSession(in); !errors.Is(err, tt.want) {
				t.Errorf("BuildSession() error = %v, want %v", err, tt.want)
			}
		})
	}
}
