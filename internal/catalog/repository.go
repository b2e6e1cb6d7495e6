package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/khoii1/DA-Fitness/internal/nutrition"
)

// Repository is a database-backed catalog.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new catalog Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Gateway = (*Repository)(nil)

const (
	selectExercises = `SELECT exercise_id, name, met_value, category_ids, equipment_ids FROM exercises`
	selectMeals     = `SELECT meal_id, name, calories, protein_sources, category_ids, ingredients FROM meals`
)

func (r *Repository) AllExercises(ctx context.Context) ([]Exercise, error) {
	exercises, err := r.queryExercises(ctx, selectExercises+` ORDER BY exercise_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	return exercises, nil
}

func (r *Repository) ExercisesByIDs(ctx context.Context, ids []string) ([]Exercise, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := inClause(selectExercises+` WHERE exercise_id IN `, ids)
	exercises, err := r.queryExercises(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get exercises by ids: %w", err)
	}
	return orderByIDs(exercises, ids, func(e Exercise) string { return e.ID }), nil
}

func (r *Repository) AllMeals(ctx context.Context) ([]Meal, error) {
	meals, err := r.queryMeals(ctx, selectMeals+` ORDER BY meal_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	if err := r.fillCalories(ctx, meals); err != nil {
		return nil, err
	}
	return meals, nil
}

func (r *Repository) MealsByIDs(ctx context.Context, ids []string) ([]Meal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := inClause(selectMeals+` WHERE meal_id IN `, ids)
	meals, err := r.queryMeals(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get meals by ids: %w", err)
	}
	if err := r.fillCalories(ctx, meals); err != nil {
		return nil, err
	}
	return orderByIDs(meals, ids, func(m Meal) string { return m.ID }), nil
}

// AllIngredients returns every ingredient keyed by id.
func (r *Repository) AllIngredients(ctx context.Context) (map[string]Ingredient, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ingredient_id, name, kcal, protein, carbs, fat FROM ingredients`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Ingredient)
	for rows.Next() {
		var i Ingredient
		if err := rows.Scan(&i.ID, &i.Name, &i.Kcal, &i.Protein, &i.Carbs, &i.Fat); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		out[i.ID] = i
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingredients: %w", err)
	}
	return out, nil
}

// fillCalories derives calories from ingredients for meals that have none stored.
func (r *Repository) fillCalories(ctx context.Context, meals []Meal) error {
	needed := false
	for _, m := range meals {
		if m.Calories == 0 && len(m.Ingredients) > 0 {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	ingredients, err := r.AllIngredients(ctx)
	if err != nil {
		return err
	}
	macros := make(map[string]nutrition.Macros, len(ingredients))
	for id, i := range ingredients {
		macros[id] = i.Macros()
	}
	for i := range meals {
		if meals[i].Calories == 0 && len(meals[i].Ingredients) > 0 {
			meals[i].Calories = nutrition.CalculateMealNutrition(meals[i].Ingredients, macros).Kcal
		}
	}
	return nil
}

func (r *Repository) queryExercises(ctx context.Context, query string, args ...any) ([]Exercise, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exercise
	for rows.Next() {
		var (
			e                     Exercise
			categories, equipment string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.METValue, &categories, &equipment); err != nil {
			return nil, err
		}
		if err := decodeList(categories, &e.CategoryIDs); err != nil {
			return nil, fmt.Errorf("exercise %s categories: %w", e.ID, err)
		}
		if err := decodeList(equipment, &e.EquipmentIDs); err != nil {
			return nil, fmt.Errorf("exercise %s equipment: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) queryMeals(ctx context.Context, query string, args ...any) ([]Meal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Meal
	for rows.Next() {
		var (
			m                                 Meal
			proteins, categories, ingredients string
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Calories, &proteins, &categories, &ingredients); err != nil {
			return nil, err
		}
		if err := decodeList(proteins, &m.ProteinSources); err != nil {
			return nil, fmt.Errorf("meal %s protein sources: %w", m.ID, err)
		}
		if err := decodeList(categories, &m.CategoryIDs); err != nil {
			return nil, fmt.Errorf("meal %s categories: %w", m.ID, err)
		}
		if err := decodeList(ingredients, &m.Ingredients); err != nil {
			return nil, fmt.Errorf("meal %s ingredients: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Import upserts a snapshot in a single transaction.
func (r *Repository) Import(ctx context.Context, snap Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin catalog import: %w", err)
	}
	defer tx.Rollback()

	for _, i := range snap.Ingredients {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ingredients (ingredient_id, name, kcal, protein, carbs, fat) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(ingredient_id) DO UPDATE SET name = excluded.name, kcal = excluded.kcal,
			 protein = excluded.protein, carbs = excluded.carbs, fat = excluded.fat`,
			i.ID, i.Name, i.Kcal, i.Protein, i.Carbs, i.Fat)
		if err != nil {
			return fmt.Errorf("failed to import ingredient %s: %w", i.ID, err)
		}
	}

	for _, e := range snap.Exercises {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exercises (exercise_id, name, met_value, category_ids, equipment_ids) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(exercise_id) DO UPDATE SET name = excluded.name, met_value = excluded.met_value,
			 category_ids = excluded.category_ids, equipment_ids = excluded.equipment_ids`,
			e.ID, e.Name, e.METValue, encodeList(e.CategoryIDs), encodeList(e.EquipmentIDs))
		if err != nil {
			return fmt.Errorf("failed to import exercise %s: %w", e.ID, err)
		}
	}

	for _, m := range snap.Meals {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO meals (meal_id, name, calories, protein_sources, category_ids, ingredients) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(meal_id) DO UPDATE SET name = excluded.name, calories = excluded.calories,
			 protein_sources = excluded.protein_sources, category_ids = excluded.category_ids,
			 ingredients = excluded.ingredients`,
			m.ID, m.Name, m.Calories, encodeList(m.ProteinSources), encodeList(m.CategoryIDs), encodeList(m.Ingredients))
		if err != nil {
			return fmt.Errorf("failed to import meal %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog import: %w", err)
	}
	return nil
}

func inClause(prefix string, ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return prefix + "(" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")", args
}

func orderByIDs[T any](items []T, ids []string, idOf func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[idOf(it)] = it
	}
	out := make([]T, 0, len(items))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out
}

func decodeList[T any](raw string, dst *[]T) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func encodeList[T any](v []T) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
