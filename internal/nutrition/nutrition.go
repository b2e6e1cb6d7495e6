// Package nutrition holds the calorie model used by the planner: BMR, TDEE,
// calorie goal split, plan length, exercise burn and meal nutrition totals.
// Every function is pure and deterministic.
package nutrition

import (
	"math"

	"github.com/khoii1/DA-Fitness/internal/apperr"
)

const (
	// CaloriesPerKg is the energy content of one kilogram of body weight.
	CaloriesPerKg = 7700.0
	// DefaultWeeklyRate is the target body weight change in kg per week.
	DefaultWeeklyRate = 0.5

	MinPlanLengthDays = 7
	MaxPlanLengthDays = 30

	outtakeShareLosing  = 0.6
	outtakeShareGaining = 0.4
)

// Activity tiers accepted by CalculateTDEE.
const (
	ActivitySedentary  = "sedentary"
	ActivityLight      = "light"
	ActivityModerate   = "moderate"
	ActivityActive     = "active"
	ActivityVeryActive = "very_active"
)

var activityMultipliers = map[string]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

// CalorieGoals is the daily calorie split derived from TDEE and the weight goal.
// DailyGoalCalories is always DailyIntakeCalories - DailyOuttakeCalories.
type CalorieGoals struct {
	DailyIntakeCalories  int `json:"dailyIntakeCalories"`
	DailyOuttakeCalories int `json:"dailyOuttakeCalories"`
	DailyGoalCalories    int `json:"dailyGoalCalories"`
}

// Round rounds half up, matching how the mobile clients round displayed values.
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func round1(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}

// sanitize clamps NaN, infinities and negatives to zero.
func sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
		return 0
	}
	return x
}

// CalculateBMR uses the Mifflin-St Jeor equation. Genders other than male and
// female use the midpoint of the two offsets.
func CalculateBMR(weightKg, heightCm, ageYears float64, gender string) int {
	bmr := 10*sanitize(weightKg) + 6.25*sanitize(heightCm) - 5*sanitize(ageYears)
	switch gender {
	case "male":
		bmr += 5
	case "female":
		bmr -= 161
	default:
		bmr -= 78
	}
	return Round(bmr)
}

// CalculateTDEE scales BMR by the activity tier multiplier; unknown tiers are treated as moderate.
func CalculateTDEE(bmr int, activityTier string) int {
	multiplier, ok := activityMultipliers[activityTier]
	if !ok {
		multiplier = activityMultipliers[ActivityModerate]
	}
	return Round(float64(bmr) * multiplier)
}

// CalculateDailyCalorieGoal targets a 0.5 kg weekly change toward goalWeight.
// A zero delta is treated as a loss for the adjustment and a gain for the
// exercise share.
func CalculateDailyCalorieGoal(tdee int, currentWeight, goalWeight float64) CalorieGoals {
	weightDiff := sanitize(goalWeight) - sanitize(currentWeight)

	weeklyChange := -DefaultWeeklyRate
	if weightDiff > 0 {
		weeklyChange = DefaultWeeklyRate
	}
	adjustment := weeklyChange * CaloriesPerKg / 7

	intake := Round(float64(tdee) + adjustment)

	share := outtakeShareGaining
	if weightDiff < 0 {
		share = outtakeShareLosing
	}
	outtake := Round(math.Abs(adjustment) * share)

	return CalorieGoals{
		DailyIntakeCalories:  intake,
		DailyOuttakeCalories: outtake,
		DailyGoalCalories:    intake - outtake,
	}
}

// CalculatePlanLength returns the number of days needed to reach goalWeight at
// weeklyRate kg/week, clamped to [7, 30]. A non-positive rate uses DefaultWeeklyRate.
func CalculatePlanLength(currentWeight, goalWeight, weeklyRate float64) int {
	weeklyRate = sanitize(weeklyRate)
	if weeklyRate == 0 {
		weeklyRate = DefaultWeeklyRate
	}
	diff := math.Abs(sanitize(goalWeight) - sanitize(currentWeight))
	days := int(math.Ceil(diff / weeklyRate * 7))
	if days < MinPlanLengthDays {
		return MinPlanLengthDays
	}
	if days > MaxPlanLengthDays {
		return MaxPlanLengthDays
	}
	return days
}

// CalculateExerciseCalories is MET x weight (kg) x duration (hours).
func CalculateExerciseCalories(metValue, weightKg, durationMinutes float64) int {
	return Round(sanitize(metValue) * sanitize(weightKg) * (sanitize(durationMinutes) / 60))
}

// ValidateBiometrics rejects profiles that cannot drive the calorie model.
func ValidateBiometrics(currentWeight, currentHeight, goalWeight float64) error {
	const op = "nutrition.ValidateBiometrics"
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.Validation(op, "%s must be a finite number", name)
		}
		if v <= 0 {
			return apperr.Validation(op, "%s is required", name)
		}
		return nil
	}
	if err := check("currentWeight", currentWeight); err != nil {
		return err
	}
	if err := check("currentHeight", currentHeight); err != nil {
		return err
	}
	return check("goalWeight", goalWeight)
}
