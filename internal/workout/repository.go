package workout

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/camziny/z-fit-2.0/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// exerciseRepository reads the exercise catalog.
type exerciseRepository interface {
	List(ctx context.Context) ([]Exercise, error)
	// GetMany returns the exercises with the given ids. Missing ids are absent from the map.
	GetMany(ctx context.Context, ids []int) (map[int]Exercise, error)
}

// templateRepository reads workout templates.
type templateRepository interface {
	List(ctx context.Context) ([]Template, error)
	Get(ctx context.Context, id int) (Template, error)
}

// assessmentRepository appends and queries strength assessments.
type assessmentRepository interface {
	Add(ctx context.Context, a Assessment) (Assessment, error)
	// Latest returns the newest assessment per exercise for the owner.
	Latest(ctx context.Context, owner OwnerRef, exerciseIDs []int) (map[int]Assessment, error)
}

// profileRepository stores one progression profile per user and exercise.
type profileRepository interface {
	Upsert(ctx context.Context, p ProgressionProfile) error
	Get(ctx context.Context, userID int, exerciseIDs []int) (map[int]ProgressionProfile, error)
}

// sessionRepository persists session aggregates.
type sessionRepository interface {
	// Create stores sess together with the assessments given while setting it up, all or nothing.
	Create(ctx context.Context, sess Session, setup []Assessment) error
	Get(ctx context.Context, id string) (Session, error)
	// List returns the owner's sessions, newest first.
	List(ctx context.Context, owner OwnerRef, limit int) ([]Session, error)
	// Update reads the session, applies updateFn and writes the result if updateFn reports a change. It returns
	// ErrConflict when the session was modified concurrently.
	Update(ctx context.Context, id string, updateFn func(sess *Session) (bool, error)) error
	// LatestCompletedWeights returns the most recently lifted weight per exercise for the owner.
	LatestCompletedWeights(ctx context.Context, owner OwnerRef, exerciseIDs []int) (map[int]float64, error)
}

type repository struct {
	exercises   exerciseRepository
	templates   templateRepository
	assessments assessmentRepository
	profiles    profileRepository
	sessions    sessionRepository
}

type repositoryFactory struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newRepositoryFactory(db *sqlite.Database, logger *slog.Logger) *repositoryFactory {
	return &repositoryFactory{db: db, logger: logger}
}

func (f *repositoryFactory) newRepository() *repository {
	return &repository{
		exercises:   newSQLiteExerciseRepository(f.db),
		templates:   newSQLiteTemplateRepository(f.db),
		assessments: newSQLiteAssessmentRepository(f.db),
		profiles:    newSQLiteProfileRepository(f.db),
		sessions:    newSQLiteSessionRepository(f.db, f.logger),
	}
}

type baseRepository struct {
	db *sqlite.Database
}

func newBaseRepository(db *sqlite.Database) baseRepository {
	return baseRepository{db: db}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func formatNullableTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{String: "", Valid: false}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullableTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil //nolint:nilnil // NULL maps to a nil timestamp.
	}
	t, err := parseTimestamp(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// inClause returns "(?, ?, ?)" and the matching arguments.
func inClause(ids []int) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")", args
}

// ownerClause returns a WHERE condition selecting rows of owner from a table aliased alias.
func ownerClause(alias string, owner OwnerRef) (string, any) {
	if owner.IsUser() {
		return alias + ".user_id = ?", owner.UserID
	}
	return alias + ".anon_key = ?", owner.AnonKey
}

// ownerColumns returns the values of the user_id and anon_key columns for owner.
func ownerColumns(owner OwnerRef) (sql.NullInt64, sql.NullString) {
	if owner.IsUser() {
		return sql.NullInt64{Int64: int64(owner.UserID), Valid: true}, sql.NullString{String: "", Valid: false}
	}
	return sql.NullInt64{Int64: 0, Valid: false}, sql.NullString{String: owner.AnonKey, Valid: true}
}

func ownerFromColumns(userID sql.NullInt64, anonKey sql.NullString) OwnerRef {
	if userID.Valid {
		return UserOwner(int(userID.Int64))
	}
	return AnonOwner(anonKey.String)
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{Float64: 0, Valid: false}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{Int64: 0, Valid: false}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
