package planner

import (
	"sort"

	"github.com/khoii1/DA-Fitness/internal/catalog"
	"github.com/khoii1/DA-Fitness/internal/nutrition"
)

const (
	// MinExercises is the floor on a recommended exercise pool when the catalog allows it.
	MinExercises = 10
	// DefaultMET stands in for exercises without a MET value.
	DefaultMET = 5.0
	// ExerciseDurationMinutes is the per-exercise duration used to estimate burn.
	ExerciseDurationMinutes = 0.75

	MealsPerDay = 3
	// MinCaloriesPerMeal is the floor on the per-meal calorie target.
	MinCaloriesPerMeal = 300
	// UnknownMealCalories is assumed for meals without a calorie value.
	UnknownMealCalories = 500
	// HighIntensityMET is the average day MET from which protein meals are preferred.
	HighIntensityMET = 6.0

	highIntensityProteinBonus = 1000

	RankedPoolSize = 30
	MealPoolSize   = 40
)

type metRange struct{ min, max float64 }

var experienceMETRanges = map[string]metRange{
	"beginner":     {2, 6},
	"intermediate": {4, 8},
	"advanced":     {6, 12},
}

func metRangeFor(experience string) metRange {
	if r, ok := experienceMETRanges[experience]; ok {
		return r
	}
	return experienceMETRanges["beginner"]
}

// ExerciseConstraints narrows the catalog to exercises suited to a profile.
type ExerciseConstraints struct {
	Experience    string
	Limits        []string
	WeightKg      float64
	TargetOuttake int
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func exerciseMET(e catalog.Exercise) float64 {
	if e.METValue <= 0 {
		return DefaultMET
	}
	return e.METValue
}

// SelectExercises returns the ids of a shuffled subset of exercises whose
// estimated burn reaches the target outtake. When that subset is smaller than
// MinExercises and the eligible pool is large enough, it is topped up.
func (s *Session) SelectExercises(exercises []catalog.Exercise, c ExerciseConstraints) []string {
	r := metRangeFor(c.Experience)
	limits := toSet(c.Limits)

	seen := make(map[string]struct{}, len(exercises))
	pool := make([]catalog.Exercise, 0, len(exercises))
	for _, e := range exercises {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		// MET 0 means unknown and is never excluded by range.
		if e.METValue != 0 && (e.METValue < r.min || e.METValue > r.max) {
			continue
		}
		if catalog.HasAny(e.CategoryIDs, limits) || catalog.HasAny(e.EquipmentIDs, limits) {
			continue
		}
		seen[e.ID] = struct{}{}
		pool = append(pool, e)
	}

	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	selected := make([]string, 0, MinExercises)
	picked := make(map[string]struct{}, len(pool))
	burned := 0
	for _, e := range pool {
		if burned >= c.TargetOuttake {
			break
		}
		burned += nutrition.CalculateExerciseCalories(exerciseMET(e), c.WeightKg, ExerciseDurationMinutes)
		selected = append(selected, e.ID)
		picked[e.ID] = struct{}{}
	}

	if len(selected) < MinExercises && len(pool) >= MinExercises {
		for _, e := range pool {
			if len(selected) >= MinExercises {
				break
			}
			if _, ok := picked[e.ID]; ok {
				continue
			}
			selected = append(selected, e.ID)
			picked[e.ID] = struct{}{}
		}
	}
	return selected
}

// FilterMeals drops meals whose category or protein source is excluded by limits.
func FilterMeals(meals []catalog.Meal, limits []string) []catalog.Meal {
	if len(limits) == 0 {
		return meals
	}
	set := toSet(limits)
	out := make([]catalog.Meal, 0, len(meals))
	for _, m := range meals {
		if catalog.HasAny(m.CategoryIDs, set) || catalog.HasAny(m.ProteinSources, set) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// TargetPerMeal splits a daily intake across MealsPerDay meals.
func TargetPerMeal(targetIntake int) int {
	return max(MinCaloriesPerMeal, nutrition.Round(float64(targetIntake)/MealsPerDay))
}

func mealScore(m catalog.Meal, targetPerMeal int, highIntensity bool) int {
	calories := m.Calories
	if calories == 0 {
		calories = UnknownMealCalories
	}
	score := calories - targetPerMeal
	if score < 0 {
		score = -score
	}
	if highIntensity && len(m.ProteinSources) > 0 {
		score -= highIntensityProteinBonus
	}
	return score
}

func dedupeMeals(meals []catalog.Meal) []catalog.Meal {
	seen := make(map[string]struct{}, len(meals))
	out := make([]catalog.Meal, 0, len(meals))
	for _, m := range meals {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// RecommendMeals returns the preview meal pool. Every meal category present
// among the allowed meals is covered by its meal closest to the per-meal
// target; the rest of the pool is filled by closeness up to MealPoolSize ids.
func RecommendMeals(meals []catalog.Meal, limits []string, targetIntake int) []string {
	candidates := dedupeMeals(FilterMeals(meals, limits))
	target := TargetPerMeal(targetIntake)
	sort.SliceStable(candidates, func(i, j int) bool {
		return mealScore(candidates[i], target, false) < mealScore(candidates[j], target, false)
	})

	ids := make([]string, 0, min(len(candidates), MealPoolSize))
	picked := make(map[string]struct{}, cap(ids))
	covered := make(map[string]struct{})
	for _, m := range candidates {
		if !hasUncovered(m.CategoryIDs, covered) {
			continue
		}
		for _, c := range m.CategoryIDs {
			covered[c] = struct{}{}
		}
		ids = append(ids, m.ID)
		picked[m.ID] = struct{}{}
	}

	for _, m := range candidates {
		if len(ids) >= MealPoolSize {
			break
		}
		if _, ok := picked[m.ID]; ok {
			continue
		}
		ids = append(ids, m.ID)
	}
	return ids
}

func hasUncovered(categories []string, covered map[string]struct{}) bool {
	for _, c := range categories {
		if _, ok := covered[c]; !ok {
			return true
		}
	}
	return false
}
