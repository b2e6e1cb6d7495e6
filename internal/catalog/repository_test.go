package catalog

import (
	"context"
	"testing"

	"github.com/khoii1/DA-Fitness/internal/nutrition"
	"github.com/khoii1/DA-Fitness/internal/testutil"
)

func TestRepositoryImportAndRead(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t))

	snap := Snapshot{
		Ingredients: []Ingredient{
			{ID: "chicken", Name: "Chicken breast", Kcal: 165, Protein: 31, Fat: 3.6},
			{ID: "rice", Name: "White rice", Kcal: 130, Protein: 2.7, Carbs: 28, Fat: 0.3},
		},
		Exercises: []Exercise{
			{ID: "ex-2", Name: "Burpee", METValue: 8, CategoryIDs: []string{"cardio"}},
			{ID: "ex-1", Name: "Squat", METValue: 5, EquipmentIDs: []string{"barbell"}},
		},
		Meals: []Meal{
			{ID: "meal-1", Name: "Oats", Calories: 350},
			{
				ID:             "meal-2",
				Name:           "Chicken rice",
				ProteinSources: []string{"chicken"},
				Ingredients: []nutrition.IngredientAmount{
					{IngredientID: "chicken", AmountGrams: 150},
					{IngredientID: "rice", AmountGrams: 200},
				},
			},
		},
	}
	if err := repo.Import(ctx, snap); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	t.Run("AllExercises", func(t *testing.T) {
		exercises, err := repo.AllExercises(ctx)
		if err != nil {
			t.Fatalf("AllExercises failed: %v", err)
		}
		if len(exercises) != 2 {
			t.Fatalf("Expected 2 exercises, got %d", len(exercises))
		}
		if exercises[0].ID != "ex-1" || exercises[0].EquipmentIDs[0] != "barbell" {
			t.Errorf("Expected ex-1 with barbell first, got %+v", exercises[0])
		}
	})

	t.Run("MealCaloriesFromIngredients", func(t *testing.T) {
		meals, err := repo.AllMeals(ctx)
		if err != nil {
			t.Fatalf("AllMeals failed: %v", err)
		}
		if len(meals) != 2 {
			t.Fatalf("Expected 2 meals, got %d", len(meals))
		}
		if meals[1].Calories != 508 {
			t.Errorf("Expected derived calories 508, got %d", meals[1].Calories)
		}
		if meals[0].Calories != 350 {
			t.Errorf("Expected stored calories 350, got %d", meals[0].Calories)
		}
	})

	t.Run("ByIDsKeepsRequestOrder", func(t *testing.T) {
		exercises, err := repo.ExercisesByIDs(ctx, []string{"ex-2", "missing", "ex-1", "ex-2"})
		if err != nil {
			t.Fatalf("ExercisesByIDs failed: %v", err)
		}
		if len(exercises) != 2 || exercises[0].ID != "ex-2" || exercises[1].ID != "ex-1" {
			t.Errorf("Expected [ex-2 ex-1], got %+v", exercises)
		}

		meals, err := repo.MealsByIDs(ctx, []string{"meal-2"})
		if err != nil {
			t.Fatalf("MealsByIDs failed: %v", err)
		}
		if len(meals) != 1 || meals[0].Calories != 508 {
			t.Errorf("Expected meal-2 with 508 kcal, got %+v", meals)
		}

		none, err := repo.MealsByIDs(ctx, nil)
		if err != nil || len(none) != 0 {
			t.Errorf("Expected empty result for no ids, got %v, %v", none, err)
		}
	})

	t.Run("ImportUpserts", func(t *testing.T) {
		snap := Snapshot{Exercises: []Exercise{{ID: "ex-1", Name: "Front squat", METValue: 6}}}
		if err := repo.Import(ctx, snap); err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		exercises, err := repo.ExercisesByIDs(ctx, []string{"ex-1"})
		if err != nil {
			t.Fatalf("ExercisesByIDs failed: %v", err)
		}
		if exercises[0].METValue != 6 || exercises[0].Name != "Front squat" {
			t.Errorf("Expected updated exercise, got %+v", exercises[0])
		}
	})
}

func TestHasAny(t *testing.T) {
	limits := map[string]struct{}{"pork": {}}
	if !HasAny([]string{"beef", "pork"}, limits) {
		t.Error("Expected pork to match limits")
	}
	if HasAny([]string{"beef"}, limits) {
		t.Error("Expected beef not to match limits")
	}
	if HasAny(nil, limits) {
		t.Error("Expected empty values not to match")
	}
}
