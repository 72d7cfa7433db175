package workout

import (
	"context"
	"errors"
	"fmt"

	"github.com/camziny/z-fit-2.0/internal/sqlite"
)

// sqliteProfileRepository implements profileRepository.
type sqliteProfileRepository struct {
	baseRepository
}

func newSQLiteProfileRepository(db *sqlite.Database) *sqliteProfileRepository {
	return &sqliteProfileRepository{
		baseRepository: newBaseRepository(db),
	}
}

func (r *sqliteProfileRepository) Upsert(ctx context.Context, p ProgressionProfile) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO progression_profiles (user_id, exercise_id, last_completed_weight_kg, last_rir,
		                                  next_planned_weight_kg, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, exercise_id) DO UPDATE SET
			last_completed_weight_kg = excluded.last_completed_weight_kg,
			last_rir = excluded.last_rir,
			next_planned_weight_kg = excluded.next_planned_weight_kg,
			updated_at = excluded.updated_at`,
		p.UserID, p.ExerciseID, p.LastCompletedWeightKg, p.LastRIR, p.NextPlannedWeightKg,
		formatTimestamp(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert progression profile: %w", err)
	}
	return nil
}

func (r *sqliteProfileRepository) Get(
	ctx context.Context,
	userID int,
	exerciseIDs []int,
) (_ map[int]ProgressionProfile, err error) {
	profiles := make(map[int]ProgressionProfile, len(exerciseIDs))
	if len(exerciseIDs) == 0 {
		return profiles, nil
	}

	in, args := inClause(exerciseIDs)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT user_id, exercise_id, last_completed_weight_kg, last_rir, next_planned_weight_kg, updated_at
		FROM progression_profiles
		WHERE user_id = ? AND exercise_id IN `+in, append([]any{userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query progression profiles: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	for rows.Next() {
		var (
			p         ProgressionProfile
			updatedAt string
		)
		if err = rows.Scan(&p.UserID, &p.ExerciseID, &p.LastCompletedWeightKg, &p.LastRIR,
			&p.NextPlannedWeightKg, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan progression profile: %w", err)
		}
		if p.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, err
		}
		profiles[p.ExerciseID] = p
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return profiles, nil
}
