package plandb

import "database/sql"

type Plan struct {
	ID                   string
	PlanID               int64
	UserID               string
	DailyGoalCalories    int64
	DailyIntakeCalories  int64
	DailyOuttakeCalories int64
	StartDate            string
	EndDate              string
	IsExtending          int64
	LockExpiresAt        sql.NullInt64
	CreatedAt            int64
}

type ExerciseCollectionRow struct {
	ListID         string
	Date           string
	SettingID      string
	Rounds         int64
	PerRound       int64
	WarmUp         int64
	Shuffle        int64
	ExerciseTime   int64
	TransitionTime int64
	RestTime       int64
	RestFrequency  int64
}

type MealCollection struct {
	ListID    string
	PlanID    int64
	Date      string
	MealRatio float64
}

type ListItemRow struct {
	ListID string
	ItemID string
}
