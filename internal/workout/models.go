package workout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camziny/z-fit-2.0/internal/strength"
	"github.com/camziny/z-fit-2.0/internal/weights"
)

// OwnerRef identifies who a session, assessment or profile belongs to. Exactly one of UserID and AnonKey is set.
type OwnerRef struct {
	UserID  int    `json:"userId,omitempty"`
	AnonKey string `json:"anonKey,omitempty"`
}

// UserOwner returns an OwnerRef for a signed-in user.
func UserOwner(userID int) OwnerRef {
	return OwnerRef{UserID: userID, AnonKey: ""}
}

// AnonOwner returns an OwnerRef for an anonymous visitor.
func AnonOwner(anonKey string) OwnerRef {
	return OwnerRef{UserID: 0, AnonKey: anonKey}
}

// Validate returns ErrValidation unless exactly one identity is present.
func (o OwnerRef) Validate() error {
	hasUser := o.UserID > 0
	hasAnon := o.AnonKey != ""
	if hasUser == hasAnon {
		return fmt.Errorf("owner must have exactly one of user id and anonymous key: %w", ErrValidation)
	}
	return nil
}

// IsUser reports whether the owner is a signed-in user.
func (o OwnerRef) IsUser() bool {
	return o.UserID > 0
}

func (o OwnerRef) String() string {
	if o.IsUser() {
		return fmt.Sprintf("user:%d", o.UserID)
	}
	return "anon:" + o.AnonKey
}

// Equipment is the implement an exercise is performed with.
type Equipment string

const (
	EquipmentBarbell    Equipment = "barbell"
	EquipmentDumbbell   Equipment = "dumbbell"
	EquipmentMachine    Equipment = "machine"
	EquipmentKettlebell Equipment = "kettlebell"
	EquipmentCable      Equipment = "cable"
	EquipmentBodyweight Equipment = "bodyweight"
)

// LoadingMode describes how weight is put on the implement.
type LoadingMode string

const (
	LoadingBar    LoadingMode = "bar"
	LoadingPair   LoadingMode = "pair"
	LoadingSingle LoadingMode = "single"
)

// LoadBasis is where a set's resistance comes from.
type LoadBasis string

const (
	LoadExternal       LoadBasis = "external"
	LoadBodyweight     LoadBasis = "bodyweight"
	LoadBodyweightPlus LoadBasis = "bodyweight_plus"
	LoadAssisted       LoadBasis = "assisted"
)

// Exercise is a catalog entry.
type Exercise struct {
	ID                   int         `json:"id"`
	Name                 string      `json:"name"`
	BodyPart             string      `json:"bodyPart"`
	Description          string      `json:"description"`
	IsWeighted           bool        `json:"isWeighted"`
	Equipment            Equipment   `json:"equipment"`
	LoadingMode          LoadingMode `json:"loadingMode"`
	RoundingIncrementKg  *float64    `json:"roundingIncrementKg,omitempty"`
	RoundingIncrementLbs *float64    `json:"roundingIncrementLbs,omitempty"`
}

// Increments returns the rounding steps for the exercise. Explicit per-exercise increments win, then dumbbell spacing
// for dumbbell work, then the defaults.
func (e Exercise) Increments() weights.Increments {
	inc := weights.DefaultIncrements()
	if e.looksLikeDumbbellWork() {
		inc = weights.DumbbellIncrements()
	}
	if e.RoundingIncrementKg != nil {
		inc.Kg = *e.RoundingIncrementKg
	}
	if e.RoundingIncrementLbs != nil {
		inc.Lbs = *e.RoundingIncrementLbs
	}
	return inc
}

func (e Exercise) looksLikeDumbbellWork() bool {
	if e.Equipment == EquipmentDumbbell {
		return true
	}
	name := strings.ToLower(e.Name)
	return strings.Contains(name, "dumbbell") || strings.Contains(name, "lunge")
}

// PlannedSet is one set of a template item.
type PlannedSet struct {
	Reps        int      `json:"reps"`
	WeightKg    *float64 `json:"weightKg,omitempty"`
	RestSeconds *int     `json:"restSeconds,omitempty"`
}

// TemplateItem is an exercise slot in a template. A non-empty GroupID makes it a superset member.
type TemplateItem struct {
	ExerciseID int          `json:"exerciseId"`
	Order      int          `json:"order"`
	GroupID    string       `json:"groupId,omitempty"`
	GroupOrder int          `json:"groupOrder,omitempty"`
	Sets       []PlannedSet `json:"sets"`
}

// Template is a reusable workout definition.
type Template struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	BodyPart    string         `json:"bodyPart"`
	Items       []TemplateItem `json:"items"`
}

// AssessmentInput is a strength self-report before it is stored.
type AssessmentInput struct {
	ExerciseID int                `json:"exerciseId"`
	Type       strength.BasisType `json:"type"`
	Value      float64            `json:"value"`
	Unit       weights.Unit       `json:"unit"`
}

// Validate rejects unknown types and units and non-positive or non-finite values.
func (a AssessmentInput) Validate() error {
	if a.ExerciseID <= 0 {
		return fmt.Errorf("assessment exercise id %d: %w", a.ExerciseID, ErrValidation)
	}
	if !a.Unit.Valid() {
		return fmt.Errorf("assessment unit %q: %w", a.Unit, ErrValidation)
	}
	if _, err := strength.EstimateOneRepMax(a.Value, a.Type); err != nil {
		return fmt.Errorf("assessment value: %w", errors.Join(err, ErrValidation))
	}
	return nil
}

// ValueKg returns the assessed value in kilograms.
func (a AssessmentInput) ValueKg() float64 {
	return weights.ToKg(a.Value, a.Unit)
}

// Assessment is a stored self-report.
type Assessment struct {
	ID        int       `json:"id"`
	Owner     OwnerRef  `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	AssessmentInput
}

// ProgressionProfile is the per-user, per-exercise progression state.
type ProgressionProfile struct {
	UserID                int       `json:"userId"`
	ExerciseID            int       `json:"exerciseId"`
	LastCompletedWeightKg float64   `json:"lastCompletedWeightKg"`
	LastRIR               int       `json:"lastRir"`
	NextPlannedWeightKg   float64   `json:"nextPlannedWeightKg"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Cursor points at the current set.
type Cursor struct {
	ExerciseIndex int `json:"exerciseIndex"`
	SetIndex      int `json:"setIndex"`
}

// Grouping is either Standalone or GroupMember.
type Grouping interface {
	isGrouping()
}

// Standalone exercises are performed on their own.
type Standalone struct{}

// GroupMember exercises are performed round-robin with the other members of the same group.
type GroupMember struct {
	GroupID    string
	GroupOrder int
}

func (Standalone) isGrouping()  {}
func (GroupMember) isGrouping() {}

// NewGrouping returns Standalone for an empty groupID.
func NewGrouping(groupID string, groupOrder int) Grouping {
	if groupID == "" {
		return Standalone{}
	}
	return GroupMember{GroupID: groupID, GroupOrder: groupOrder}
}

// SessionSet is one planned set and, once done, what was performed.
type SessionSet struct {
	TargetReps        int        `json:"targetReps"`
	WeightKg          *float64   `json:"weightKg,omitempty"`
	Done              bool       `json:"done"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	CompletedReps     *int       `json:"completedReps,omitempty"`
	CompletedWeightKg *float64   `json:"completedWeightKg,omitempty"`
}

// resolvedWeightKg returns the weight performed, or the planned weight when nothing was recorded.
func (s SessionSet) resolvedWeightKg() (float64, bool) {
	if s.CompletedWeightKg != nil {
		return *s.CompletedWeightKg, true
	}
	if s.WeightKg != nil {
		return *s.WeightKg, true
	}
	return 0, false
}

// SessionExercise is the snapshot of a template item inside a session.
type SessionExercise struct {
	ExerciseID  int
	Name        string
	Equipment   Equipment
	LoadingMode LoadingMode
	LoadBasis   LoadBasis
	RestSeconds int
	Grouping    Grouping
	Sets        []SessionSet
	RIR         *int
}

type sessionExerciseJSON struct {
	ExerciseID  int          `json:"exerciseId"`
	Name        string       `json:"name"`
	Equipment   Equipment    `json:"equipment"`
	LoadingMode LoadingMode  `json:"loadingMode"`
	LoadBasis   LoadBasis    `json:"loadBasis"`
	RestSeconds int          `json:"restSeconds"`
	GroupID     string       `json:"groupId,omitempty"`
	GroupOrder  int          `json:"groupOrder,omitempty"`
	Sets        []SessionSet `json:"sets"`
	RIR         *int         `json:"rir,omitempty"`
}

func (e SessionExercise) MarshalJSON() ([]byte, error) {
	out := sessionExerciseJSON{
		ExerciseID:  e.ExerciseID,
		Name:        e.Name,
		Equipment:   e.Equipment,
		LoadingMode: e.LoadingMode,
		LoadBasis:   e.LoadBasis,
		RestSeconds: e.RestSeconds,
		GroupID:     "",
		GroupOrder:  0,
		Sets:        e.Sets,
		RIR:         e.RIR,
	}
	if gm, ok := e.Grouping.(GroupMember); ok {
		out.GroupID, out.GroupOrder = gm.GroupID, gm.GroupOrder
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal session exercise: %w", err)
	}
	return data, nil
}

func (e *SessionExercise) UnmarshalJSON(data []byte) error {
	var in sessionExerciseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("unmarshal session exercise: %w", err)
	}
	*e = SessionExercise{
		ExerciseID:  in.ExerciseID,
		Name:        in.Name,
		Equipment:   in.Equipment,
		LoadingMode: in.LoadingMode,
		LoadBasis:   in.LoadBasis,
		RestSeconds: in.RestSeconds,
		Grouping:    NewGrouping(in.GroupID, in.GroupOrder),
		Sets:        in.Sets,
		RIR:         in.RIR,
	}
	return nil
}

// hasResolvedWeight reports whether any set carries a planned or performed weight.
func (e SessionExercise) hasResolvedWeight() bool {
	for _, s := range e.Sets {
		if _, ok := s.resolvedWeightKg(); ok {
			return true
		}
	}
	return false
}

func (e SessionExercise) firstUndone() (int, bool) {
	for i, s := range e.Sets {
		if !s.Done {
			return i, true
		}
	}
	return 0, false
}

func (e SessionExercise) allDone() bool {
	_, undone := e.firstUndone()
	return !undone
}

// Session is one workout attempt. Exercise and set counts and order never change after creation.
type Session struct {
	ID          string            `json:"id"`
	Owner       OwnerRef          `json:"owner"`
	TemplateID  int               `json:"templateId"`
	Status      Status            `json:"status"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Cursor      Cursor            `json:"cursor"`
	RestEnabled bool              `json:"restEnabled"`
	Exercises   []SessionExercise `json:"exercises"`
	// Version is incremented on every persisted change and guards concurrent updates.
	Version int `json:"version"`
}
