package plandb

import (
	"context"
	"database/sql"
)

const maxExerciseCollectionDate = `-- name: MaxExerciseCollectionDate :one
SELECT MAX(date) FROM exercise_collections WHERE plan_id = ?
`

func (q *Queries) MaxExerciseCollectionDate(ctx context.Context, planID int64) (sql.NullString, error) {
	row := q.db.QueryRowContext(ctx, maxExerciseCollectionDate, planID)
	var maxDate sql.NullString
	err := row.Scan(&maxDate)
	return maxDate, err
}

const maxMealCollectionDate = `-- name: MaxMealCollectionDate :one
SELECT MAX(date) FROM meal_collections WHERE plan_id = ?
`

func (q *Queries) MaxMealCollectionDate(ctx context.Context, planID int64) (sql.NullString, error) {
	row := q.db.QueryRowContext(ctx, maxMealCollectionDate, planID)
	var maxDate sql.NullString
	err := row.Scan(&maxDate)
	return maxDate, err
}

const listSettingIDsByPlan = `-- name: ListSettingIDsByPlan :many
SELECT DISTINCT setting_id FROM exercise_collections WHERE plan_id = ?
`

func (q *Queries) ListSettingIDsByPlan(ctx context.Context, planID int64) ([]string, error) {
	return q.listStrings(ctx, listSettingIDsByPlan, planID)
}

const deletePlanExercisesByPlan = `-- name: DeletePlanExercisesByPlan :exec
DELETE FROM plan_exercises
WHERE list_id IN (SELECT list_id FROM exercise_collections WHERE plan_id = ?)
`

func (q *Queries) DeletePlanExercisesByPlan(ctx context.Context, planID int64) error {
	_, err := q.db.ExecContext(ctx, deletePlanExercisesByPlan, planID)
	return err
}

const deletePlanMealsByPlan = `-- name: DeletePlanMealsByPlan :exec
DELETE FROM plan_meals
WHERE list_id IN (SELECT list_id FROM meal_collections WHERE plan_id = ?)
`

func (q *Queries) DeletePlanMealsByPlan(ctx context.Context, planID int64) error {
	_, err := q.db.ExecContext(ctx, deletePlanMealsByPlan, planID)
	return err
}

const deleteExerciseCollectionsByPlan = `-- name: DeleteExerciseCollectionsByPlan :exec
DELETE FROM exercise_collections WHERE plan_id = ?
`

func (q *Queries) DeleteExerciseCollectionsByPlan(ctx context.Context, planID int64) error {
	_, err := q.db.ExecContext(ctx, deleteExerciseCollectionsByPlan, planID)
	return err
}

const deleteMealCollectionsByPlan = `-- name: DeleteMealCollectionsByPlan :exec
DELETE FROM meal_collections WHERE plan_id = ?
`

func (q *Queries) DeleteMealCollectionsByPlan(ctx context.Context, planID int64) error {
	_, err := q.db.ExecContext(ctx, deleteMealCollectionsByPlan, planID)
	return err
}

const deleteSettingIfOrphaned = `-- name: DeleteSettingIfOrphaned :exec
DELETE FROM collection_settings
WHERE id = ? AND NOT EXISTS (SELECT 1 FROM exercise_collections WHERE setting_id = ?)
`

func (q *Queries) DeleteSettingIfOrphaned(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteSettingIfOrphaned, id, id)
	return err
}

const listMealRefsByPlan = `-- name: ListMealRefsByPlan :many
SELECT pm.list_id, pm.meal_id
FROM plan_meals pm
JOIN meal_collections mc ON mc.list_id = pm.list_id
WHERE mc.plan_id = ?
ORDER BY pm.rowid
`

func (q *Queries) ListMealRefsByPlan(ctx context.Context, planID int64) ([]ListItemRow, error) {
	return q.listItems(ctx, listMealRefsByPlan, planID)
}

const listExerciseRefsByPlan = `-- name: ListExerciseRefsByPlan :many
SELECT pe.list_id, pe.exercise_id
FROM plan_exercises pe
JOIN exercise_collections ec ON ec.list_id = pe.list_id
WHERE ec.plan_id = ?
ORDER BY pe.rowid
`

func (q *Queries) ListExerciseRefsByPlan(ctx context.Context, planID int64) ([]ListItemRow, error) {
	return q.listItems(ctx, listExerciseRefsByPlan, planID)
}

const listDistinctExerciseIDsByPlan = `-- name: ListDistinctExerciseIDsByPlan :many
SELECT DISTINCT pe.exercise_id
FROM plan_exercises pe
JOIN exercise_collections ec ON ec.list_id = pe.list_id
WHERE ec.plan_id = ?
ORDER BY pe.exercise_id
`

func (q *Queries) ListDistinctExerciseIDsByPlan(ctx context.Context, planID int64) ([]string, error) {
	return q.listStrings(ctx, listDistinctExerciseIDsByPlan, planID)
}

const listDistinctMealIDsByPlan = `-- name: ListDistinctMealIDsByPlan :many
SELECT DISTINCT pm.meal_id
FROM plan_meals pm
JOIN meal_collections mc ON mc.list_id = pm.list_id
WHERE mc.plan_id = ?
ORDER BY pm.meal_id
`

func (q *Queries) ListDistinctMealIDsByPlan(ctx context.Context, planID int64) ([]string, error) {
	return q.listStrings(ctx, listDistinctMealIDsByPlan, planID)
}

const listExerciseCollectionsWithSettings = `-- name: ListExerciseCollectionsWithSettings :many
SELECT ec.list_id, ec.date, s.id, s.rounds, s.per_round, s.warm_up, s.shuffle,
       s.exercise_time, s.transition_time, s.rest_time, s.rest_frequency
FROM exercise_collections ec
JOIN collection_settings s ON s.id = ec.setting_id
WHERE ec.plan_id = ?
ORDER BY ec.date, ec.rowid
`

func (q *Queries) ListExerciseCollectionsWithSettings(ctx context.Context, planID int64) ([]ExerciseCollectionRow, error) {
	rows, err := q.db.QueryContext(ctx, listExerciseCollectionsWithSettings, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExerciseCollectionRow
	for rows.Next() {
		var i ExerciseCollectionRow
		if err := rows.Scan(
			&i.ListID,
			&i.Date,
			&i.SettingID,
			&i.Rounds,
			&i.PerRound,
			&i.WarmUp,
			&i.Shuffle,
			&i.ExerciseTime,
			&i.TransitionTime,
			&i.RestTime,
			&i.RestFrequency,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listMealCollectionsByPlan = `-- name: ListMealCollectionsByPlan :many
SELECT list_id, plan_id, date, meal_ratio
FROM meal_collections
WHERE plan_id = ?
ORDER BY date, rowid
`

func (q *Queries) ListMealCollectionsByPlan(ctx context.Context, planID int64) ([]MealCollection, error) {
	rows, err := q.db.QueryContext(ctx, listMealCollectionsByPlan, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MealCollection
	for rows.Next() {
		var i MealCollection
		if err := rows.Scan(&i.ListID, &i.PlanID, &i.Date, &i.MealRatio); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) listStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) listItems(ctx context.Context, query string, args ...interface{}) ([]ListItemRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListItemRow
	for rows.Next() {
		var i ListItemRow
		if err := rows.Scan(&i.ListID, &i.ItemID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
