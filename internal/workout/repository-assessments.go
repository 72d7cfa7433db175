package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/camziny/z-fit-2.0/internal/sqlite"
)

// sqliteAssessmentRepository implements assessmentRepository.
type sqliteAssessmentRepository struct {
	baseRepository
}

func newSQLiteAssessmentRepository(db *sqlite.Database) *sqliteAssessmentRepository {
	return &sqliteAssessmentRepository{
		baseRepository: newBaseRepository(db),
	}
}

// Add appends an assessment and returns it with its id.
func (r *sqliteAssessmentRepository) Add(ctx context.Context, a Assessment) (Assessment, error) {
	return insertAssessment(ctx, r.db.ReadWrite, a)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertAssessment(ctx context.Context, q queryRower, a Assessment) (Assessment, error) {
	userID, anonKey := ownerColumns(a.Owner)
	err := q.QueryRowContext(ctx, `
		INSERT INTO assessments (user_id, anon_key, exercise_id, type, value, unit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		userID, anonKey, a.ExerciseID, a.Type, a.Value, a.Unit, formatTimestamp(a.CreatedAt),
	).Scan(&a.ID)
	if err != nil {
		return Assessment{}, fmt.Errorf("insert assessment: %w", err)
	}
	return a, nil
}

// Latest ranks the owner's assessments per exercise by creation time, breaking ties by insertion order.
func (r *sqliteAssessmentRepository) Latest(
	ctx context.Context,
	owner OwnerRef,
	exerciseIDs []int,
) (_ map[int]Assessment, err error) {
	latest := make(map[int]Assessment, len(exerciseIDs))
	if len(exerciseIDs) == 0 {
		return latest, nil
	}

	ownerCond, ownerArg := ownerClause("a", owner)
	in, args := inClause(exerciseIDs)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, user_id, anon_key, exercise_id, type, value, unit, created_at
		FROM (SELECT a.*,
		             ROW_NUMBER() OVER (PARTITION BY a.exercise_id ORDER BY a.created_at DESC, a.id DESC) AS rn
		      FROM assessments a
		      WHERE `+ownerCond+` AND a.exercise_id IN `+in+`)
		WHERE rn = 1`, append([]any{ownerArg}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query latest assessments: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	for rows.Next() {
		var (
			a         Assessment
			userID    sql.NullInt64
			anonKey   sql.NullString
			createdAt string
		)
		if err = rows.Scan(&a.ID, &userID, &anonKey, &a.ExerciseID, &a.Type, &a.Value, &a.Unit,
			&createdAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		a.Owner = ownerFromColumns(userID, anonKey)
		if a.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		latest[a.ExerciseID] = a
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return latest, nil
}
