package workout

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/camziny/z-fit-2.0/internal/ptr"
)

// Event is a state transition applied with (*Session).Apply.
type Event interface {
	apply(s *Session, now time.Time) (Outcome, error)
	name() string
}

// MarkSetDone marks a set as performed. Nil performed values default to the planned values.
type MarkSetDone struct {
	ExerciseIndex     int
	SetIndex          int
	PerformedReps     *int
	PerformedWeightKg *float64
}

// UpdatePlannedWeight sets the planned weight of every not yet done set from FromSetIndex onwards.
type UpdatePlannedWeight struct {
	ExerciseIndex int
	FromSetIndex  int
	WeightKg      float64
}

// RecordEffortRating stores the reps-in-reserve rating of an exercise.
type RecordEffortRating struct {
	ExerciseIndex int
	RIR           int
}

// Direction is a navigation direction.
type Direction string

const (
	DirectionPrevious Direction = "previous"
	DirectionNext     Direction = "next"
)

// Navigate moves the cursor one set without touching done state.
type Navigate struct {
	Direction Direction
}

// Complete closes the session. It fails while ratings are owed.
type Complete struct{}

const (
	minRIR = 0
	maxRIR = 4
)

// Outcome describes the effect of an applied event.
type Outcome struct {
	Changed bool `json:"changed"`
	// ExerciseComplete is set when the marked set was the exercise's last undone set.
	ExerciseComplete bool `json:"exerciseComplete"`
	// AwaitingCompletion is set when every set is done and the session is still active.
	AwaitingCompletion bool   `json:"awaitingCompletion"`
	Cursor             Cursor `json:"cursor"`
	// RestSeconds is the rest to take before the next set, 0 for none.
	RestSeconds int   `json:"restSeconds"`
	OwedRatings []int `json:"owedRatings"`
}

// Apply applies ev to the session. On error the session is left exactly as it was.
func (s *Session) Apply(ev Event, now time.Time) (Outcome, error) {
	if s.Status == StatusCompleted {
		return Outcome{}, fmt.Errorf("%s on completed session: %w", ev.name(), ErrInvalidState)
	}

	next := s.clone()
	out, err := ev.apply(&next, now)
	if err != nil {
		return Outcome{}, err
	}
	if out.Changed {
		*s = next
	}

	out.Cursor = s.Cursor
	out.AwaitingCompletion = s.AwaitingCompletion()
	out.OwedRatings = s.OwedRatings()
	return out, nil
}

// AwaitingCompletion reports whether an active session has every set done.
func (s *Session) AwaitingCompletion() bool {
	if s.Status != StatusActive {
		return false
	}
	for _, ex := range s.Exercises {
		if !ex.allDone() {
			return false
		}
	}
	return true
}

// OwedRatings returns the indices of exercises with a resolved weight that have not been rated.
func (s *Session) OwedRatings() []int {
	owed := []int{}
	for i, ex := range s.Exercises {
		if ex.RIR == nil && ex.hasResolvedWeight() {
			owed = append(owed, i)
		}
	}
	return owed
}

// CompletedSets counts done sets.
func (s *Session) CompletedSets() int {
	n := 0
	for _, ex := range s.Exercises {
		for _, set := range ex.Sets {
			if set.Done {
				n++
			}
		}
	}
	return n
}

// TotalSets counts all sets.
func (s *Session) TotalSets() int {
	n := 0
	for _, ex := range s.Exercises {
		n += len(ex.Sets)
	}
	return n
}

func (s *Session) clone() Session {
	c := *s
	c.CompletedAt = ptr.Clone(s.CompletedAt)
	c.Exercises = make([]SessionExercise, len(s.Exercises))
	for i, ex := range s.Exercises {
		ex.RIR = ptr.Clone(ex.RIR)
		sets := make([]SessionSet, len(ex.Sets))
		for j, set := range ex.Sets {
			set.WeightKg = ptr.Clone(set.WeightKg)
			set.CompletedAt = ptr.Clone(set.CompletedAt)
			set.CompletedReps = ptr.Clone(set.CompletedReps)
			set.CompletedWeightKg = ptr.Clone(set.CompletedWeightKg)
			sets[j] = set
		}
		ex.Sets = sets
		c.Exercises[i] = ex
	}
	return c
}

func (s *Session) exercise(index int) (*SessionExercise, error) {
	if index < 0 || index >= len(s.Exercises) {
		return nil, fmt.Errorf("exercise index %d: %w", index, ErrNotFound)
	}
	return &s.Exercises[index], nil
}

func (s *Session) set(exerciseIndex, setIndex int) (*SessionExercise, *SessionSet, error) {
	ex, err := s.exercise(exerciseIndex)
	if err != nil {
		return nil, nil, err
	}
	if setIndex < 0 || setIndex >= len(ex.Sets) {
		return nil, nil, fmt.Errorf("set index %d of exercise %d: %w", setIndex, exerciseIndex, ErrNotFound)
	}
	return ex, &ex.Sets[setIndex], nil
}

func (e MarkSetDone) name() string { return "mark set done" }

func (e MarkSetDone) apply(s *Session, now time.Time) (Outcome, error) {
	ex, set, err := s.set(e.ExerciseIndex, e.SetIndex)
	if err != nil {
		return Outcome{}, err
	}
	if e.PerformedReps != nil && *e.PerformedReps <= 0 {
		return Outcome{}, fmt.Errorf("performed reps %d: %w", *e.PerformedReps, ErrValidation)
	}
	if e.PerformedWeightKg != nil && !validWeight(*e.PerformedWeightKg) {
		return Outcome{}, fmt.Errorf("performed weight %v: %w", *e.PerformedWeightKg, ErrValidation)
	}
	if set.Done {
		// Duplicate submissions are no-ops.
		return Outcome{}, nil
	}

	set.Done = true
	set.CompletedAt = ptr.Ref(now)
	set.CompletedReps = ptr.Ref(ptr.Deref(e.PerformedReps, set.TargetReps))
	set.CompletedWeightKg = ptr.Clone(e.PerformedWeightKg)
	if set.CompletedWeightKg == nil {
		set.CompletedWeightKg = ptr.Clone(set.WeightKg)
	}

	out := Outcome{Changed: true, ExerciseComplete: ex.allDone()}
	next, ok := s.nextCursor(e.ExerciseIndex, e.SetIndex)
	if !ok {
		// Nothing left; stay on the last marked set.
		s.Cursor = Cursor{ExerciseIndex: e.ExerciseIndex, SetIndex: e.SetIndex}
		return out, nil
	}
	if s.RestEnabled && !s.continuesRound(e.ExerciseIndex, next.ExerciseIndex) {
		out.RestSeconds = ex.RestSeconds
	}
	s.Cursor = next
	return out, nil
}

// nextCursor finds the set to perform after (ei, si). Superset members hand over round-robin by group order to the
// next member with an undone set; once the whole group is done, or for standalone exercises, the rest of the current
// exercise comes first and then the following exercises, wrapping around to pick up sets skipped by navigation.
func (s *Session) nextCursor(ei, si int) (Cursor, bool) {
	if members := s.groupMembers(ei); len(members) > 1 {
		pos := slices.Index(members, ei)
		for k := 1; k <= len(members); k++ {
			m := members[(pos+k)%len(members)]
			if j, ok := s.Exercises[m].firstUndone(); ok {
				return Cursor{ExerciseIndex: m, SetIndex: j}, true
			}
		}
	}

	ex := s.Exercises[ei]
	for j := si + 1; j < len(ex.Sets); j++ {
		if !ex.Sets[j].Done {
			return Cursor{ExerciseIndex: ei, SetIndex: j}, true
		}
	}
	if j, ok := ex.firstUndone(); ok {
		return Cursor{ExerciseIndex: ei, SetIndex: j}, true
	}
	for k := 1; k < len(s.Exercises); k++ {
		m := (ei + k) % len(s.Exercises)
		if j, ok := s.Exercises[m].firstUndone(); ok {
			return Cursor{ExerciseIndex: m, SetIndex: j}, true
		}
	}
	return Cursor{}, false
}

// groupMembers returns the exercise indices sharing ei's group, ordered by group order. Nil for standalone exercises.
func (s *Session) groupMembers(ei int) []int {
	gm, ok := s.Exercises[ei].Grouping.(GroupMember)
	if !ok {
		return nil
	}
	type member struct {
		index int
		order int
	}
	var members []member
	for i, ex := range s.Exercises {
		if other, isMember := ex.Grouping.(GroupMember); isMember && other.GroupID == gm.GroupID {
			members = append(members, member{index: i, order: other.GroupOrder})
		}
	}
	slices.SortStableFunc(members, func(a, b member) int {
		return cmp.Compare(a.order, b.order)
	})
	indices := make([]int, len(members))
	for i, m := range members {
		indices[i] = m.index
	}
	return indices
}

// continuesRound reports whether moving from one exercise to another stays within a superset round, in which case
// no rest is taken.
func (s *Session) continuesRound(from, to int) bool {
	if from == to {
		return false
	}
	a, ok := s.Exercises[from].Grouping.(GroupMember)
	if !ok {
		return false
	}
	b, ok := s.Exercises[to].Grouping.(GroupMember)
	return ok && a.GroupID == b.GroupID && b.GroupOrder > a.GroupOrder
}

func (e UpdatePlannedWeight) name() string { return "update planned weight" }

func (e UpdatePlannedWeight) apply(s *Session, _ time.Time) (Outcome, error) {
	ex, _, err := s.set(e.ExerciseIndex, e.FromSetIndex)
	if err != nil {
		return Outcome{}, err
	}
	if !validPlannedWeight(e.WeightKg) {
		return Outcome{}, fmt.Errorf("planned weight %v: %w", e.WeightKg, ErrValidation)
	}
	var out Outcome
	for j := e.FromSetIndex; j < len(ex.Sets); j++ {
		set := &ex.Sets[j]
		if set.Done {
			continue
		}
		if set.WeightKg == nil || *set.WeightKg != e.WeightKg {
			set.WeightKg = ptr.Ref(e.WeightKg)
			out.Changed = true
		}
	}
	return out, nil
}

func (e RecordEffortRating) name() string { return "record effort rating" }

func (e RecordEffortRating) apply(s *Session, _ time.Time) (Outcome, error) {
	ex, err := s.exercise(e.ExerciseIndex)
	if err != nil {
		return Outcome{}, err
	}
	if e.RIR < minRIR || e.RIR > maxRIR {
		return Outcome{}, fmt.Errorf("rir %d outside %d..%d: %w", e.RIR, minRIR, maxRIR, ErrValidation)
	}
	if !ex.hasResolvedWeight() {
		return Outcome{}, fmt.Errorf("rate %s without a weighted set: %w", ex.Name, ErrInvalidState)
	}
	if ex.RIR != nil && *ex.RIR == e.RIR {
		return Outcome{}, nil
	}
	ex.RIR = ptr.Ref(e.RIR)
	return Outcome{Changed: true}, nil
}

func (e Navigate) name() string { return "navigate" }

func (e Navigate) apply(s *Session, _ time.Time) (Outcome, error) {
	if _, _, err := s.set(s.Cursor.ExerciseIndex, s.Cursor.SetIndex); err != nil {
		return Outcome{}, fmt.Errorf("cursor: %w", err)
	}
	c := s.Cursor
	switch e.Direction {
	case DirectionNext:
		if c.SetIndex+1 < len(s.Exercises[c.ExerciseIndex].Sets) {
			c.SetIndex++
		} else if c.ExerciseIndex+1 < len(s.Exercises) {
			c = Cursor{ExerciseIndex: c.ExerciseIndex + 1, SetIndex: 0}
		}
	case DirectionPrevious:
		if c.SetIndex > 0 {
			c.SetIndex--
		} else if c.ExerciseIndex > 0 {
			prev := c.ExerciseIndex - 1
			c = Cursor{ExerciseIndex: prev, SetIndex: len(s.Exercises[prev].Sets) - 1}
		}
	default:
		return Outcome{}, fmt.Errorf("direction %q: %w", e.Direction, ErrValidation)
	}
	if c == s.Cursor {
		return Outcome{}, nil
	}
	s.Cursor = c
	return Outcome{Changed: true}, nil
}

func (e Complete) name() string { return "complete" }

func (e Complete) apply(s *Session, now time.Time) (Outcome, error) {
	if owed := s.OwedRatings(); len(owed) > 0 {
		return Outcome{}, fmt.Errorf("complete with %d owed ratings: %w", len(owed), ErrInvalidState)
	}
	s.Status = StatusCompleted
	s.CompletedAt = ptr.Ref(now)
	return Outcome{Changed: true}, nil
}

func validWeight(w float64) bool {
	return w > 0 && !math.IsNaN(w) && !math.IsInf(w, 0)
}

// validPlannedWeight also accepts 0, which plans a set without external load.
func validPlannedWeight(w float64) bool {
	return w == 0 || validWeight(w)
}
