package nutrition

// IngredientAmount is one line of a recipe: how many grams of which ingredient.
type IngredientAmount struct {
	IngredientID string  `json:"ingredientId"`
	AmountGrams  float64 `json:"amountGrams"`
}

// Macros are nutrition values per 100 g of an ingredient.
type Macros struct {
	Kcal    float64
	Protein float64
	Carbs   float64
	Fat     float64
}

// MealNutrition is the aggregated nutrition of a meal.
type MealNutrition struct {
	Kcal    int     `json:"kcal"`
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
}

// CalculateMealNutrition sums per-100g macros scaled by each amount.
// Ingredients missing from the catalog contribute nothing.
func CalculateMealNutrition(amounts []IngredientAmount, catalog map[string]Macros) MealNutrition {
	var kcal, protein, carbs, fat float64
	for _, a := range amounts {
		m, ok := catalog[a.IngredientID]
		if !ok {
			continue
		}
		multiplier := sanitize(a.AmountGrams) / 100
		kcal += sanitize(m.Kcal) * multiplier
		protein += sanitize(m.Protein) * multiplier
		carbs += sanitize(m.Carbs) * multiplier
		fat += sanitize(m.Fat) * multiplier
	}
	return MealNutrition{
		Kcal:    Round(kcal),
		Protein: round1(protein),
		Carbs:   round1(carbs),
		Fat:     round1(fat),
	}
}
