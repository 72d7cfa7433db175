package workout

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/camziny/z-fit-2.0/internal/family"
	"github.com/camziny/z-fit-2.0/internal/ptr"
	"github.com/camziny/z-fit-2.0/internal/sqlite"
	"github.com/camziny/z-fit-2.0/internal/strength"
	"github.com/camziny/z-fit-2.0/internal/weights"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// maxUpdateAttempts bounds the read-apply-write retries on concurrent session modification.
	maxUpdateAttempts   = 3
	defaultHistoryLimit = 20
)

// Observer receives domain events, typically to count them.
type Observer interface {
	SessionBuilt()
	SetCompleted()
	EffortRated(rir int)
	ProfileUpserted()
	SessionCompleted()
	WeightResolved(source Source)
	ConflictRetried()
}

type noopObserver struct{}

func (noopObserver) SessionBuilt()         {}
func (noopObserver) SetCompleted()         {}
func (noopObserver) EffortRated(int)       {}
func (noopObserver) ProfileUpserted()      {}
func (noopObserver) SessionCompleted()     {}
func (noopObserver) WeightResolved(Source) {}
func (noopObserver) ConflictRetried()      {}

// Service handles the business logic for workout sessions.
type Service struct {
	repo     *repository
	logger   *slog.Logger
	families *family.Table
	observer Observer
	now      func() time.Time
}

// NewService creates a new workout service. A nil families table disables the same-family fallback and a nil
// observer discards events.
func NewService(db *sqlite.Database, logger *slog.Logger, families *family.Table, observer Observer) *Service {
	if observer == nil {
		observer = noopObserver{}
	}
	factory := newRepositoryFactory(db, logger)
	return &Service{
		repo:     factory.newRepository(),
		logger:   logger,
		families: families,
		observer: observer,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

// ListExercises returns the exercise catalog.
func (s *Service) ListExercises(ctx context.Context) ([]Exercise, error) {
	exercises, err := s.repo.exercises.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	return exercises, nil
}

// ListTemplates returns every workout template with its items.
func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	templates, err := s.repo.templates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

func (s *Service) GetTemplate(ctx context.Context, id int) (Template, error) {
	t, err := s.repo.templates.Get(ctx, id)
	if err != nil {
		return Template{}, fmt.Errorf("get template %d: %w", id, err)
	}
	return t, nil
}

// BuildSessionRequest holds the input of BuildSession. WeightOverrides and Assessments are keyed by exercise id;
// Assessments are the answers given while setting up this session.
type BuildSessionRequest struct {
	TemplateID      int
	Owner           OwnerRef
	WeightOverrides map[int]float64
	Assessments     []AssessmentInput
	RestEnabled     bool
}

// BuildSession plans a weight for every weighted exercise and persists a new active session together with the setup
// assessments. Nothing is stored when the build is rejected. It returns the session id.
func (s *Service) BuildSession(ctx context.Context, req BuildSessionRequest) (string, error) {
	if err := req.Owner.Validate(); err != nil {
		return "", err
	}
	for _, a := range req.Assessments {
		if err := a.Validate(); err != nil {
			return "", err
		}
	}

	tmpl, err := s.repo.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return "", fmt.Errorf("get template %d: %w", req.TemplateID, err)
	}

	catalog, inputs, err := s.resolverInputs(ctx, req.Owner, tmpl, req.Assessments)
	if err != nil {
		return "", err
	}
	now := s.now()
	setup := make([]Assessment, 0, len(req.Assessments))
	for _, a := range req.Assessments {
		if _, ok := catalog[a.ExerciseID]; !ok {
			return "", fmt.Errorf("setup assessment for exercise %d: %w", a.ExerciseID, ErrNotFound)
		}
		setup = append(setup, Assessment{ID: 0, Owner: req.Owner, CreatedAt: now, AssessmentInput: a})
	}

	resolver := NewResolver(s.families, catalog)
	planned := make(map[int]float64)
	for _, item := range tmpl.Items {
		ex, ok := catalog[item.ExerciseID]
		if !ok || !ex.IsWeighted {
			continue
		}
		if _, overridden := req.WeightOverrides[ex.ID]; overridden {
			continue
		}
		if _, done := planned[ex.ID]; done {
			continue
		}
		basis, found := resolver.Resolve(ex, tmpl.BodyPart, inputs)
		if !found {
			s.observer.WeightResolved(SourceNone)
			continue
		}
		s.observer.WeightResolved(basis.Source)
		var w float64
		if w, err = PlanWeightKg(basis, averageTargetReps(item), ex.Increments()); err != nil {
			return "", fmt.Errorf("plan weight for %s: %w", ex.Name, err)
		}
		planned[ex.ID] = w
	}

	sess, err := BuildSession(BuildInput{
		ID:               uuid.NewString(),
		Owner:            req.Owner,
		Template:         tmpl,
		Catalog:          catalog,
		OverridesKg:      req.WeightOverrides,
		PlannedWeightsKg: planned,
		RestEnabled:      req.RestEnabled,
		Now:              now,
	})
	if err != nil {
		return "", fmt.Errorf("build session from template %d: %w", tmpl.ID, err)
	}
	if err = s.repo.sessions.Create(ctx, sess, setup); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	s.observer.SessionBuilt()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "session built",
		slog.String("session_id", sess.ID),
		slog.Int("template_id", tmpl.ID),
		slog.String("owner", sess.Owner.String()),
		slog.Int("planned_exercises", len(planned)))
	return sess.ID, nil
}

// resolverInputs loads the catalog entries of the template and everything known about owner for them.
func (s *Service) resolverInputs(
	ctx context.Context,
	owner OwnerRef,
	tmpl Template,
	transient []AssessmentInput,
) (map[int]Exercise, ResolverInputs, error) {
	ids := templateExerciseIDs(tmpl)
	for _, a := range transient {
		if !slices.Contains(ids, a.ExerciseID) {
			ids = append(ids, a.ExerciseID)
		}
	}

	var (
		catalog   map[int]Exercise
		latest    map[int]Assessment
		profiles  = map[int]ProgressionProfile{}
		completed map[int]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if catalog, err = s.repo.exercises.GetMany(gctx, ids); err != nil {
			return fmt.Errorf("get exercises: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if latest, err = s.repo.assessments.Latest(gctx, owner, ids); err != nil {
			return fmt.Errorf("get latest assessments: %w", err)
		}
		return nil
	})
	if owner.IsUser() {
		g.Go(func() error {
			var err error
			if profiles, err = s.repo.profiles.Get(gctx, owner.UserID, ids); err != nil {
				return fmt.Errorf("get progression profiles: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		if completed, err = s.repo.sessions.LatestCompletedWeights(gctx, owner, ids); err != nil {
			return fmt.Errorf("get latest completed weights: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, ResolverInputs{}, err
	}

	return catalog, ResolverInputs{
		Transient:        transient,
		Assessments:      latest,
		Profiles:         profiles,
		CompletedWeights: completed,
	}, nil
}

func templateExerciseIDs(tmpl Template) []int {
	ids := make([]int, 0, len(tmpl.Items))
	for _, item := range tmpl.Items {
		if !slices.Contains(ids, item.ExerciseID) {
			ids = append(ids, item.ExerciseID)
		}
	}
	return ids
}

// AssessmentQuestion asks the owner for a strength self-report of Type, prefilled when something is known.
type AssessmentQuestion struct {
	Type    strength.BasisType `json:"type"`
	Prefill *float64           `json:"prefillKg,omitempty"`
}

// PlanItem is the setup preview of one template item.
type PlanItem struct {
	ExerciseID        int                 `json:"exerciseId"`
	Name              string              `json:"name"`
	IsWeighted        bool                `json:"isWeighted"`
	TargetReps        float64             `json:"targetReps"`
	Basis             *Basis              `json:"basis,omitempty"`
	SuggestedWeightKg *float64            `json:"suggestedWeightKg,omitempty"`
	Question          *AssessmentQuestion `json:"question,omitempty"`
}

// Plan is what a session built from a template would look like right now.
type Plan struct {
	TemplateID int        `json:"templateId"`
	Items      []PlanItem `json:"items"`
}

// PreviewPlan resolves every item of a template without persisting anything. Weighted items get an assessment
// question: the first one in template order asks for a one-rep max, the others for a working weight.
func (s *Service) PreviewPlan(
	ctx context.Context,
	templateID int,
	owner OwnerRef,
	transient []AssessmentInput,
) (Plan, error) {
	if err := owner.Validate(); err != nil {
		return Plan{}, err
	}
	for _, a := range transient {
		if err := a.Validate(); err != nil {
			return Plan{}, err
		}
	}
	tmpl, err := s.repo.templates.Get(ctx, templateID)
	if err != nil {
		return Plan{}, fmt.Errorf("get template %d: %w", templateID, err)
	}
	catalog, inputs, err := s.resolverInputs(ctx, owner, tmpl, transient)
	if err != nil {
		return Plan{}, err
	}

	items := slices.Clone(tmpl.Items)
	slices.SortStableFunc(items, func(a, b TemplateItem) int {
		return cmp.Compare(a.Order, b.Order)
	})

	resolver := NewResolver(s.families, catalog)
	plan := Plan{TemplateID: tmpl.ID, Items: make([]PlanItem, 0, len(items))}
	asked := false
	for _, item := range items {
		ex, ok := catalog[item.ExerciseID]
		if !ok {
			return Plan{}, fmt.Errorf("template %d exercise %d: %w", tmpl.ID, item.ExerciseID, ErrNotFound)
		}
		pi := PlanItem{
			ExerciseID:        ex.ID,
			Name:              ex.Name,
			IsWeighted:        ex.IsWeighted,
			TargetReps:        averageTargetReps(item),
			Basis:             nil,
			SuggestedWeightKg: nil,
			Question:          nil,
		}
		if !ex.IsWeighted {
			plan.Items = append(plan.Items, pi)
			continue
		}

		question := &AssessmentQuestion{Type: strength.BasisWorking, Prefill: nil}
		if !asked {
			question.Type = strength.BasisOneRepMax
			asked = true
		}
		if basis, found := resolver.Resolve(ex, tmpl.BodyPart, inputs); found {
			pi.Basis = ptr.Ref(basis)
			var w float64
			if w, err = PlanWeightKg(basis, pi.TargetReps, ex.Increments()); err != nil {
				return Plan{}, fmt.Errorf("plan weight for %s: %w", ex.Name, err)
			}
			pi.SuggestedWeightKg = ptr.Ref(w)

			var prefill float64
			if prefill, err = strength.ConvertBasis(basis.Value, basis.Type, question.Type); err != nil {
				return Plan{}, fmt.Errorf("prefill %s: %w", ex.Name, err)
			}
			question.Prefill = ptr.Ref(weights.RoundToIncrement(prefill, ex.Increments(), weights.UnitKg))
		}
		pi.Question = question
		plan.Items = append(plan.Items, pi)
	}
	return plan, nil
}

// GetSession returns a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (Session, error) {
	sess, err := s.repo.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns the owner's sessions, newest first. A non-positive limit selects the default.
func (s *Service) ListSessions(ctx context.Context, owner OwnerRef, limit int) ([]Session, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	sessions, err := s.repo.sessions.List(ctx, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions of %s: %w", owner, err)
	}
	return sessions, nil
}

// updateSession runs a read-apply-write on the session, starting over when another writer got there first.
func (s *Service) updateSession(ctx context.Context, id string, updateFn func(sess *Session) (bool, error)) error {
	var err error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err = s.repo.sessions.Update(ctx, id, updateFn)
		if !errors.Is(err, ErrConflict) {
			break
		}
		s.observer.ConflictRetried()
		s.logger.LogAttrs(ctx, slog.LevelWarn, "retrying session update after conflict",
			slog.String("session_id", id), slog.Int("attempt", attempt))
	}
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	return nil
}

// applyEvent applies ev to the session and persists the result.
func (s *Service) applyEvent(ctx context.Context, id string, ev Event) (Outcome, error) {
	var out Outcome
	err := s.updateSession(ctx, id, func(sess *Session) (bool, error) {
		var err error
		if out, err = sess.Apply(ev, s.now()); err != nil {
			return false, err
		}
		return out.Changed, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", ev.name(), err)
	}
	return out, nil
}

// MarkSetDone marks a set as performed and moves the cursor to the next set. Marking a done set again changes
// nothing.
func (s *Service) MarkSetDone(ctx context.Context, id string, ev MarkSetDone) (Outcome, error) {
	out, err := s.applyEvent(ctx, id, ev)
	if err != nil {
		return Outcome{}, err
	}
	if out.Changed {
		s.observer.SetCompleted()
		s.logger.LogAttrs(ctx, slog.LevelInfo, "set marked done",
			slog.String("session_id", id),
			slog.Int("exercise_index", ev.ExerciseIndex),
			slog.Int("set_index", ev.SetIndex),
			slog.Bool("awaiting_completion", out.AwaitingCompletion))
	}
	return out, nil
}

// UpdatePlannedWeight changes the planned weight of the remaining sets of an exercise.
func (s *Service) UpdatePlannedWeight(ctx context.Context, id string, ev UpdatePlannedWeight) (Outcome, error) {
	return s.applyEvent(ctx, id, ev)
}

// Navigate moves the cursor one set in direction.
func (s *Service) Navigate(ctx context.Context, id string, direction Direction) (Outcome, error) {
	return s.applyEvent(ctx, id, Navigate{Direction: direction})
}

// RecordEffortRating stores the reps-in-reserve rating of an exercise and updates the progression profile when the
// session belongs to a signed-in user. A signed-in owner rating an anonymous session takes the session over.
func (s *Service) RecordEffortRating(
	ctx context.Context,
	id string,
	exerciseIndex int,
	rir int,
	owner *OwnerRef,
) (Outcome, error) {
	if owner != nil {
		if err := owner.Validate(); err != nil {
			return Outcome{}, err
		}
	}

	var (
		out     Outcome
		rated   Session
		adopted bool
	)
	err := s.updateSession(ctx, id, func(sess *Session) (bool, error) {
		adopted = false
		if owner != nil && owner.IsUser() && !sess.Owner.IsUser() && sess.Status == StatusActive {
			sess.Owner = *owner
			adopted = true
		}
		var err error
		if out, err = sess.Apply(RecordEffortRating{ExerciseIndex: exerciseIndex, RIR: rir}, s.now()); err != nil {
			return false, err
		}
		rated = *sess
		return out.Changed || adopted, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("record effort rating: %w", err)
	}

	if out.Changed || adopted {
		s.observer.EffortRated(rir)
		s.logger.LogAttrs(ctx, slog.LevelInfo, "effort rating recorded",
			slog.String("session_id", id),
			slog.Int("exercise_index", exerciseIndex),
			slog.Int("rir", rir),
			slog.Bool("adopted", adopted))
	}

	if err = s.updateProgression(ctx, rated, map[int]int{exerciseIndex: rir}); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// CompleteSession applies the given ratings, keyed by exercise index, and closes the session. It fails with
// ErrInvalidState while an exercise that owes a rating is left unrated.
func (s *Service) CompleteSession(ctx context.Context, id string, ratings map[int]int) (Outcome, error) {
	var (
		out       Outcome
		completed Session
	)
	err := s.updateSession(ctx, id, func(sess *Session) (bool, error) {
		changed := false
		for _, ei := range slices.Sorted(maps.Keys(ratings)) {
			o, err := sess.Apply(RecordEffortRating{ExerciseIndex: ei, RIR: ratings[ei]}, s.now())
			if err != nil {
				return false, fmt.Errorf("rate exercise %d: %w", ei, err)
			}
			changed = changed || o.Changed
		}
		var err error
		if out, err = sess.Apply(Complete{}, s.now()); err != nil {
			return false, err
		}
		completed = *sess
		return changed || out.Changed, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("complete session: %w", err)
	}

	s.observer.SessionCompleted()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "session completed",
		slog.String("session_id", id),
		slog.Int("completed_sets", completed.CompletedSets()),
		slog.Int("total_sets", completed.TotalSets()))

	if err = s.updateProgression(ctx, completed, ratings); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// updateProgression upserts the profile of every rated exercise. Anonymous sessions are skipped.
func (s *Service) updateProgression(ctx context.Context, sess Session, ratings map[int]int) error {
	if !sess.Owner.IsUser() {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "skipping progression for anonymous session",
			slog.String("session_id", sess.ID))
		return nil
	}
	now := s.now()
	for _, ei := range slices.Sorted(maps.Keys(ratings)) {
		if ei < 0 || ei >= len(sess.Exercises) {
			return fmt.Errorf("exercise index %d: %w", ei, ErrNotFound)
		}
		p, err := progressionFor(sess.Owner.UserID, sess.Exercises[ei], ratings[ei], now)
		if err != nil {
			return fmt.Errorf("progression for exercise %d: %w", ei, err)
		}
		if err = s.repo.profiles.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert progression profile: %w", err)
		}
		s.observer.ProfileUpserted()
		s.logger.LogAttrs(ctx, slog.LevelInfo, "progression profile upserted",
			slog.Int("exercise_id", p.ExerciseID),
			slog.Float64("last_completed_weight_kg", p.LastCompletedWeightKg),
			slog.Float64("next_planned_weight_kg", p.NextPlannedWeightKg))
	}
	return nil
}

// RecordAssessment appends a strength self-report.
func (s *Service) RecordAssessment(ctx context.Context, owner OwnerRef, in AssessmentInput) (Assessment, error) {
	if err := owner.Validate(); err != nil {
		return Assessment{}, err
	}
	if err := in.Validate(); err != nil {
		return Assessment{}, err
	}
	exercises, err := s.repo.exercises.GetMany(ctx, []int{in.ExerciseID})
	if err != nil {
		return Assessment{}, fmt.Errorf("get exercise: %w", err)
	}
	if _, ok := exercises[in.ExerciseID]; !ok {
		return Assessment{}, fmt.Errorf("exercise %d: %w", in.ExerciseID, ErrNotFound)
	}
	a, err := s.repo.assessments.Add(ctx, Assessment{ID: 0, Owner: owner, CreatedAt: s.now(), AssessmentInput: in})
	if err != nil {
		return Assessment{}, fmt.Errorf("record assessment: %w", err)
	}
	return a, nil
}

// GetLatestAssessments returns the newest assessment per exercise.
func (s *Service) GetLatestAssessments(
	ctx context.Context,
	owner OwnerRef,
	exerciseIDs []int,
) (map[int]Assessment, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	latest, err := s.repo.assessments.Latest(ctx, owner, exerciseIDs)
	if err != nil {
		return nil, fmt.Errorf("get latest assessments: %w", err)
	}
	return latest, nil
}

// GetProgressionsForExercises returns the progression profiles of a signed-in owner. Anonymous owners have none.
func (s *Service) GetProgressionsForExercises(
	ctx context.Context,
	owner OwnerRef,
	exerciseIDs []int,
) (map[int]ProgressionProfile, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if !owner.IsUser() {
		return map[int]ProgressionProfile{}, nil
	}
	profiles, err := s.repo.profiles.Get(ctx, owner.UserID, exerciseIDs)
	if err != nil {
		return nil, fmt.Errorf("get progression profiles: %w", err)
	}
	return profiles, nil
}

// GetLatestCompletedWeights returns the most recently lifted weight per exercise.
func (s *Service) GetLatestCompletedWeights(
	ctx context.Context,
	owner OwnerRef,
	exerciseIDs []int,
) (map[int]float64, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	weightsKg, err := s.repo.sessions.LatestCompletedWeights(ctx, owner, exerciseIDs)
	if err != nil {
		return nil, fmt.Errorf("get latest completed weights: %w", err)
	}
	return weightsKg, nil
}
