package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/camziny/z-fit-2.0/internal/sqlite"
)

// sqliteExerciseRepository implements exerciseRepository.
type sqliteExerciseRepository struct {
	baseRepository
}

func newSQLiteExerciseRepository(db *sqlite.Database) *sqliteExerciseRepository {
	return &sqliteExerciseRepository{
		baseRepository: newBaseRepository(db),
	}
}

const exerciseColumns = `id, name, body_part, description, is_weighted, equipment, loading_mode,
       rounding_increment_kg, rounding_increment_lbs`

func scanExercise(row interface{ Scan(dest ...any) error }) (Exercise, error) {
	var (
		ex     Exercise
		incKg  sql.NullFloat64
		incLbs sql.NullFloat64
	)
	if err := row.Scan(&ex.ID, &ex.Name, &ex.BodyPart, &ex.Description, &ex.IsWeighted, &ex.Equipment,
		&ex.LoadingMode, &incKg, &incLbs); err != nil {
		return Exercise{}, fmt.Errorf("scan exercise: %w", err)
	}
	ex.RoundingIncrementKg = floatPtr(incKg)
	ex.RoundingIncrementLbs = floatPtr(incLbs)
	return ex, nil
}

// List returns the whole catalog ordered by body part and name.
func (r *sqliteExerciseRepository) List(ctx context.Context) (_ []Exercise, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `SELECT `+exerciseColumns+`
		FROM exercises
		ORDER BY body_part, name`)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var exercises []Exercise
	for rows.Next() {
		var ex Exercise
		if ex, err = scanExercise(rows); err != nil {
			return nil, err
		}
		exercises = append(exercises, ex)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return exercises, nil
}

func (r *sqliteExerciseRepository) GetMany(ctx context.Context, ids []int) (_ map[int]Exercise, err error) {
	exercises := make(map[int]Exercise, len(ids))
	if len(ids) == 0 {
		return exercises, nil
	}
	in, args := inClause(ids)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `SELECT `+exerciseColumns+`
		FROM exercises
		WHERE id IN `+in, args...)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	for rows.Next() {
		var ex Exercise
		if ex, err = scanExercise(rows); err != nil {
			return nil, err
		}
		exercises[ex.ID] = ex
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return exercises, nil
}

// sqliteTemplateRepository implements templateRepository.
type sqliteTemplateRepository struct {
	baseRepository
}

func newSQLiteTemplateRepository(db *sqlite.Database) *sqliteTemplateRepository {
	return &sqliteTemplateRepository{
		baseRepository: newBaseRepository(db),
	}
}

func (r *sqliteTemplateRepository) List(ctx context.Context) (_ []Template, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, name, description, body_part
		FROM templates
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var templates []Template
	for rows.Next() {
		var t Template
		if err = rows.Scan(&t.ID, &t.Name, &t.Description, &t.BodyPart); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range templates {
		if templates[i].Items, err = r.loadItems(ctx, templates[i].ID); err != nil {
			return nil, fmt.Errorf("load items of template %d: %w", templates[i].ID, err)
		}
	}
	return templates, nil
}

func (r *sqliteTemplateRepository) Get(ctx context.Context, id int) (Template, error) {
	var t Template
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, name, description, body_part
		FROM templates
		WHERE id = ?`, id).Scan(&t.ID, &t.Name, &t.Description, &t.BodyPart)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Template{}, fmt.Errorf("query template: %w", err)
	}

	if t.Items, err = r.loadItems(ctx, id); err != nil {
		return Template{}, fmt.Errorf("load items: %w", err)
	}
	return t, nil
}

// loadItems returns a template's items in order, each with its planned sets.
func (r *sqliteTemplateRepository) loadItems(ctx context.Context, templateID int) (_ []TemplateItem, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT ti.id, ti.exercise_id, ti.item_order, ti.group_id, ti.group_order,
		       ts.reps, ts.weight_kg, ts.rest_seconds
		FROM template_items ti
		         JOIN template_sets ts ON ts.template_item_id = ti.id
		WHERE ti.template_id = ?
		ORDER BY ti.item_order, ts.set_number`, templateID)
	if err != nil {
		return nil, fmt.Errorf("query template items: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var (
		items  []TemplateItem
		lastID int
	)
	for rows.Next() {
		var (
			itemID      int
			item        TemplateItem
			groupID     sql.NullString
			groupOrder  sql.NullInt64
			set         PlannedSet
			weightKg    sql.NullFloat64
			restSeconds sql.NullInt64
		)
		if err = rows.Scan(&itemID, &item.ExerciseID, &item.Order, &groupID, &groupOrder,
			&set.Reps, &weightKg, &restSeconds); err != nil {
			return nil, fmt.Errorf("scan template item: %w", err)
		}
		set.WeightKg = floatPtr(weightKg)
		set.RestSeconds = intPtr(restSeconds)

		if itemID != lastID {
			item.GroupID = groupID.String
			item.GroupOrder = int(groupOrder.Int64)
			items = append(items, item)
			lastID = itemID
		}
		last := &items[len(items)-1]
		last.Sets = append(last.Sets, set)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}
