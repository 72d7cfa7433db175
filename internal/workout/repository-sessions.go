package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/camziny/z-fit-2.0/internal/sqlite"
)

// sqliteSessionRepository implements sessionRepository. A session is stored as one workout_sessions row plus its
// session_exercises and session_sets rows, which are rewritten as a whole on every update.
type sqliteSessionRepository struct {
	baseRepository
	logger *slog.Logger
}

func newSQLiteSessionRepository(db *sqlite.Database, logger *slog.Logger) *sqliteSessionRepository {
	return &sqliteSessionRepository{
		baseRepository: newBaseRepository(db),
		logger:         logger,
	}
}

func (r *sqliteSessionRepository) Create(ctx context.Context, sess Session, setup []Assessment) (err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	for _, a := range setup {
		if _, err = insertAssessment(ctx, tx, a); err != nil {
			return fmt.Errorf("exercise %d: %w", a.ExerciseID, err)
		}
	}

	userID, anonKey := ownerColumns(sess.Owner)
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO workout_sessions (id, user_id, anon_key, template_id, status, started_at, completed_at,
		                              cursor_exercise, cursor_set, rest_enabled, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, userID, anonKey, sess.TemplateID, sess.Status, formatTimestamp(sess.StartedAt),
		formatNullableTimestamp(sess.CompletedAt), sess.Cursor.ExerciseIndex, sess.Cursor.SetIndex,
		sess.RestEnabled, sess.Version); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err = insertSessionExercises(ctx, tx, sess); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertSessionExercises(ctx context.Context, tx *sql.Tx, sess Session) error {
	for i, ex := range sess.Exercises {
		var (
			groupID    sql.NullString
			groupOrder sql.NullInt64
		)
		if gm, ok := ex.Grouping.(GroupMember); ok {
			groupID = sql.NullString{String: gm.GroupID, Valid: true}
			groupOrder = sql.NullInt64{Int64: int64(gm.GroupOrder), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_exercises (session_id, position, exercise_id, name, equipment, loading_mode,
			                               load_basis, rest_seconds, group_id, group_order, rir)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, i, ex.ExerciseID, ex.Name, ex.Equipment, ex.LoadingMode, ex.LoadBasis, ex.RestSeconds,
			groupID, groupOrder, nullInt(ex.RIR)); err != nil {
			return fmt.Errorf("insert session exercise %d: %w", i, err)
		}

		for j, set := range ex.Sets {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO session_sets (session_id, exercise_position, position, target_reps, weight_kg, done,
				                          completed_at, completed_reps, completed_weight_kg)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sess.ID, i, j, set.TargetReps, nullFloat(set.WeightKg), set.Done,
				formatNullableTimestamp(set.CompletedAt), nullInt(set.CompletedReps),
				nullFloat(set.CompletedWeightKg)); err != nil {
				return fmt.Errorf("insert session set %d/%d: %w", i, j, err)
			}
		}
	}
	return nil
}

func (r *sqliteSessionRepository) Get(ctx context.Context, id string) (Session, error) {
	var (
		sess        Session
		userID      sql.NullInt64
		anonKey     sql.NullString
		startedAt   string
		completedAt sql.NullString
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, anon_key, template_id, status, started_at, completed_at, cursor_exercise, cursor_set,
		       rest_enabled, version
		FROM workout_sessions
		WHERE id = ?`, id).Scan(&sess.ID, &userID, &anonKey, &sess.TemplateID, &sess.Status, &startedAt,
		&completedAt, &sess.Cursor.ExerciseIndex, &sess.Cursor.SetIndex, &sess.RestEnabled, &sess.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}

	sess.Owner = ownerFromColumns(userID, anonKey)
	if sess.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return Session{}, err
	}
	if sess.CompletedAt, err = parseNullableTimestamp(completedAt); err != nil {
		return Session{}, err
	}

	if sess.Exercises, err = r.loadExercises(ctx, id); err != nil {
		return Session{}, err
	}
	if err = r.loadSets(ctx, id, sess.Exercises); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (r *sqliteSessionRepository) loadExercises(ctx context.Context, sessionID string) (_ []SessionExercise, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT exercise_id, name, equipment, loading_mode, load_basis, rest_seconds, group_id, group_order, rir
		FROM session_exercises
		WHERE session_id = ?
		ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var exercises []SessionExercise
	for rows.Next() {
		var (
			ex         SessionExercise
			groupID    sql.NullString
			groupOrder sql.NullInt64
			rir        sql.NullInt64
		)
		if err = rows.Scan(&ex.ExerciseID, &ex.Name, &ex.Equipment, &ex.LoadingMode, &ex.LoadBasis,
			&ex.RestSeconds, &groupID, &groupOrder, &rir); err != nil {
			return nil, fmt.Errorf("scan session exercise: %w", err)
		}
		ex.Grouping = NewGrouping(groupID.String, int(groupOrder.Int64))
		ex.RIR = intPtr(rir)
		exercises = append(exercises, ex)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return exercises, nil
}

func (r *sqliteSessionRepository) loadSets(ctx context.Context, sessionID string, exercises []SessionExercise) (err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT exercise_position, target_reps, weight_kg, done, completed_at, completed_reps, completed_weight_kg
		FROM session_sets
		WHERE session_id = ?
		ORDER BY exercise_position, position`, sessionID)
	if err != nil {
		return fmt.Errorf("query session sets: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	for rows.Next() {
		var (
			exercisePosition  int
			set               SessionSet
			weightKg          sql.NullFloat64
			completedAt       sql.NullString
			completedReps     sql.NullInt64
			completedWeightKg sql.NullFloat64
		)
		if err = rows.Scan(&exercisePosition, &set.TargetReps, &weightKg, &set.Done, &completedAt,
			&completedReps, &completedWeightKg); err != nil {
			return fmt.Errorf("scan session set: %w", err)
		}
		if exercisePosition < 0 || exercisePosition >= len(exercises) {
			return fmt.Errorf("session set references exercise position %d out of %d", exercisePosition,
				len(exercises))
		}
		set.WeightKg = floatPtr(weightKg)
		set.CompletedReps = intPtr(completedReps)
		set.CompletedWeightKg = floatPtr(completedWeightKg)
		if set.CompletedAt, err = parseNullableTimestamp(completedAt); err != nil {
			return err
		}
		exercises[exercisePosition].Sets = append(exercises[exercisePosition].Sets, set)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func (r *sqliteSessionRepository) List(ctx context.Context, owner OwnerRef, limit int) (_ []Session, err error) {
	ownerCond, ownerArg := ownerClause("ws", owner)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT ws.id
		FROM workout_sessions ws
		WHERE `+ownerCond+`
		ORDER BY ws.started_at DESC, ws.rowid DESC
		LIMIT ?`, ownerArg, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	sessions := make([]Session, 0, len(ids))
	for _, id := range ids {
		var sess Session
		if sess, err = r.Get(ctx, id); err != nil {
			return nil, fmt.Errorf("get session %s: %w", id, err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (r *sqliteSessionRepository) Update(
	ctx context.Context,
	id string,
	updateFn func(sess *Session) (bool, error),
) (err error) {
	sess, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	readVersion := sess.Version

	updated, err := updateFn(&sess)
	if err != nil {
		return err
	}
	if !updated {
		return nil
	}

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	userID, anonKey := ownerColumns(sess.Owner)
	res, err := tx.ExecContext(ctx, `
		UPDATE workout_sessions
		SET user_id         = ?,
		    anon_key        = ?,
		    status          = ?,
		    completed_at    = ?,
		    cursor_exercise = ?,
		    cursor_set      = ?,
		    rest_enabled    = ?,
		    version         = version + 1
		WHERE id = ? AND version = ?`,
		userID, anonKey, sess.Status, formatNullableTimestamp(sess.CompletedAt), sess.Cursor.ExerciseIndex,
		sess.Cursor.SetIndex, sess.RestEnabled, id, readVersion)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "session version changed underneath update",
			slog.String("session_id", id), slog.Int("version", readVersion))
		return fmt.Errorf("session %s version %d: %w", id, readVersion, ErrConflict)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM session_sets WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session sets: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM session_exercises WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session exercises: %w", err)
	}
	if err = insertSessionExercises(ctx, tx, sess); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LatestCompletedWeights ranks done sets per exercise by session start, then by position within the session, and
// keeps the weight of the most recent one.
func (r *sqliteSessionRepository) LatestCompletedWeights(
	ctx context.Context,
	owner OwnerRef,
	exerciseIDs []int,
) (_ map[int]float64, err error) {
	latest := make(map[int]float64, len(exerciseIDs))
	if len(exerciseIDs) == 0 {
		return latest, nil
	}

	ownerCond, ownerArg := ownerClause("ws", owner)
	in, args := inClause(exerciseIDs)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT exercise_id, weight_kg
		FROM (SELECT se.exercise_id,
		             COALESCE(ss.completed_weight_kg, ss.weight_kg) AS weight_kg,
		             ROW_NUMBER() OVER (PARTITION BY se.exercise_id
		                 ORDER BY ws.started_at DESC, ws.rowid DESC, ss.exercise_position DESC, ss.position DESC) AS rn
		      FROM session_sets ss
		               JOIN session_exercises se
		                    ON se.session_id = ss.session_id AND se.position = ss.exercise_position
		               JOIN workout_sessions ws ON ws.id = ss.session_id
		      WHERE `+ownerCond+`
		        AND ss.done = 1
		        AND COALESCE(ss.completed_weight_kg, ss.weight_kg) IS NOT NULL
		        AND se.exercise_id IN `+in+`)
		WHERE rn = 1`, append([]any{ownerArg}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query latest completed weights: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	for rows.Next() {
		var (
			exerciseID int
			weightKg   float64
		)
		if err = rows.Scan(&exerciseID, &weightKg); err != nil {
			return nil, fmt.Errorf("scan completed weight: %w", err)
		}
		latest[exerciseID] = weightKg
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return latest, nil
}
