// Package catalog is the read side of the exercise, meal and ingredient
// catalog used by the planner.
package catalog

import (
	"context"

	"github.com/khoii1/DA-Fitness/internal/nutrition"
)

// Exercise is a catalog exercise. A METValue of 0 means unknown.
type Exercise struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	METValue     float64  `json:"metValue"`
	CategoryIDs  []string `json:"categoryIds"`
	EquipmentIDs []string `json:"equipmentIds"`
}

// Meal is a catalog meal. Calories of 0 means unknown.
type Meal struct {
	ID             string                       `json:"id"`
	Name           string                       `json:"name"`
	Calories       int                          `json:"calories"`
	ProteinSources []string                     `json:"proteinSources"`
	CategoryIDs    []string                     `json:"categoryIds"`
	Ingredients    []nutrition.IngredientAmount `json:"ingredients"`
}

// Ingredient carries nutrition values per 100 g.
type Ingredient struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Kcal    float64 `json:"kcal"`
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
}

func (i Ingredient) Macros() nutrition.Macros {
	return nutrition.Macros{Kcal: i.Kcal, Protein: i.Protein, Carbs: i.Carbs, Fat: i.Fat}
}

// Gateway is the read-only catalog interface consumed by the planner.
// The ByIDs lookups return items in the order requested and skip unknown ids.
type Gateway interface {
	AllExercises(ctx context.Context) ([]Exercise, error)
	AllMeals(ctx context.Context) ([]Meal, error)
	ExercisesByIDs(ctx context.Context, ids []string) ([]Exercise, error)
	MealsByIDs(ctx context.Context, ids []string) ([]Meal, error)
}

// Snapshot is a bulk catalog payload used to seed a database.
type Snapshot struct {
	Ingredients []Ingredient `json:"ingredients"`
	Exercises   []Exercise   `json:"exercises"`
	Meals       []Meal       `json:"meals"`
}

// HasAny reports whether a meal or exercise shares an id with limits.
func HasAny(values []string, limits map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := limits[v]; ok {
			return true
		}
	}
	return false
}
