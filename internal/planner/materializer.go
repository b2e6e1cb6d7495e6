package planner

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/khoii1/DA-Fitness/internal/apperr"
	"github.com/khoii1/DA-Fitness/internal/catalog"
	"github.com/khoii1/DA-Fitness/internal/validation"
)

// CreatePlanParams are the inputs of CreatePlan, usually taken from a preview.
type CreatePlanParams struct {
	PlanLengthInDays     int        `json:"planLengthInDays" validate:"required,gt=0"`
	DailyGoalCalories    int        `json:"dailyGoalCalories" validate:"required,gt=0"`
	DailyIntakeCalories  int        `json:"dailyIntakeCalories" validate:"gte=0"`
	DailyOuttakeCalories int        `json:"dailyOuttakeCalories" validate:"gte=0"`
	ExerciseIDs          []string   `json:"exerciseIds" validate:"required,min=1"`
	MealIDs              []string   `json:"mealIds" validate:"required,min=1"`
	StartDate            *time.Time `json:"startDate,omitempty"`
	EndDate              *time.Time `json:"endDate,omitempty"`
}

type CreateResult struct {
	Plan                *Plan `json:"plan"`
	CreatedDays         int   `json:"createdDays"`
	ExerciseCollections int   `json:"exerciseCollections"`
	MealCollections     int   `json:"mealCollections"`
}

// ExtendPlanParams are the inputs of ExtendPlan. PlanRef may be a record id,
// a numeric plan id or empty for the latest plan. Empty id pools fall back
// to the items already scheduled in the plan.
type ExtendPlanParams struct {
	PlanRef     string   `json:"planId"`
	DaysToAdd   int      `json:"daysToAdd"`
	ExerciseIDs []string `json:"exerciseIds"`
	MealIDs     []string `json:"mealIds"`
}

type ExtendResult struct {
	PlanID    int64     `json:"planId"`
	AddedDays int       `json:"addedDays"`
	StartDate time.Time `json:"startDate"`
}

type SmartPlanResult struct {
	PlanID          int64     `json:"planId"`
	StartDate       time.Time `json:"startDate"`
	Days            int       `json:"days"`
	MealCollections int       `json:"mealCollections"`
	PlanMeals       int       `json:"planMeals"`
}

// dayPools is the candidate material shared by every day of one run.
type dayPools struct {
	exerciseIDs  []string
	mets         map[string]float64
	meals        []catalog.Meal
	targetIntake int
}

func newDayPools(exercises []catalog.Exercise, meals []catalog.Meal, targetIntake int) dayPools {
	p := dayPools{
		exerciseIDs:  make([]string, 0, len(exercises)),
		mets:         make(map[string]float64, len(exercises)),
		meals:        meals,
		targetIntake: targetIntake,
	}
	for _, e := range exercises {
		p.exerciseIDs = append(p.exerciseIDs, e.ID)
		p.mets[e.ID] = exerciseMET(e)
	}
	return p
}

func (p dayPools) averageMET(ids []string) float64 {
	if len(ids) == 0 {
		return 0
	}
	total := 0.0
	for _, id := range ids {
		met, ok := p.mets[id]
		if !ok {
			met = DefaultMET
		}
		total += met
	}
	return total / float64(len(ids))
}

// planDay appends one day of exercise and meal collections to b.
func (s *Service) planDay(b *Batch, sess *Session, planID int64, date time.Time, pools dayPools) DayMeals {
	dayExercises := sess.PickDayExercises(pools.exerciseIDs)
	if len(dayExercises) > 0 {
		setting := newDaySetting(len(dayExercises))
		listID := NewCollectionRef()
		b.Settings = append(b.Settings, setting)
		b.ExerciseCollections = append(b.ExerciseCollections, ExerciseCollection{
			ListID:    listID,
			PlanID:    planID,
			Date:      date,
			SettingID: setting.ID,
		})
		for _, id := range dayExercises {
			b.PlanExercises = append(b.PlanExercises, newReference(id, listID))
		}
	}

	meals := sess.PickDayMeals(pools.meals, pools.targetIntake, pools.averageMET(dayExercises))
	if len(meals.IDs) > 0 {
		listID := NewCollectionRef()
		b.MealCollections = append(b.MealCollections, MealCollection{
			ListID:    listID,
			PlanID:    planID,
			Date:      date,
			MealRatio: 1,
		})
		for _, id := range meals.IDs {
			b.PlanMeals = append(b.PlanMeals, newReference(id, listID))
		}
	}

	day := date.Format(dateLayout)
	if meals.UnderFilled {
		s.log.Warn("not enough meals to fill day", "planId", planID, "date", day, "meals", len(meals.IDs))
	} else if !meals.Unique {
		occurrences := make(map[string]int, len(meals.IDs))
		for _, id := range meals.IDs {
			occurrences[id] = sess.Occurrences(id)
		}
		s.log.Warn("accepted duplicate meal combination",
			"planId", planID, "date", day, "key", meals.Key, "occurrences", occurrences)
	}
	return meals
}

// fetchPools loads catalog details for the requested ids concurrently.
func (s *Service) fetchPools(ctx context.Context, op string, exerciseIDs, mealIDs []string) ([]catalog.Exercise, []catalog.Meal, error) {
	var (
		exercises []catalog.Exercise
		meals     []catalog.Meal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		exercises, err = s.catalog.ExercisesByIDs(gctx, exerciseIDs)
		if err != nil {
			return apperr.Persistence(op, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		meals, err = s.catalog.MealsByIDs(gctx, mealIDs)
		if err != nil {
			return apperr.Persistence(op, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if len(exercises) == 0 {
		return nil, nil, apperr.Validation(op, "none of the exercise ids exist in the catalog")
	}
	if len(meals) == 0 {
		return nil, nil, apperr.Validation(op, "none of the meal ids exist in the catalog")
	}
	return exercises, meals, nil
}

// restrictMeals applies the profile's limits unless that would leave nothing to schedule.
func (s *Service) restrictMeals(meals []catalog.Meal, limits []string) []catalog.Meal {
	filtered := FilterMeals(meals, limits)
	if len(filtered) == 0 {
		s.log.Warn("meal limits exclude every candidate, ignoring limits", "candidates", len(meals))
		return meals
	}
	return filtered
}

func intakeTarget(plan *Plan) int {
	if plan.DailyIntakeCalories > 0 {
		return plan.DailyIntakeCalories
	}
	return plan.DailyGoalCalories
}

// CreatePlan replaces the user's plan with a new one and materializes its
// first InitialWindowDays days.
func (s *Service) CreatePlan(ctx context.Context, userID string, p CreatePlanParams) (res *CreateResult, err error) {
	const op = "planner.CreatePlan"
	exec := Execution{Operation: OpCreatePlan, UserID: userID}
	started := time.Now()
	defer func() { s.observe(ctx, &exec, started, err) }()

	if err := validation.ValidateStruct(op, p); err != nil {
		return nil, err
	}
	profile, err := s.loadProfile(ctx, op, userID)
	if err != nil {
		return nil, err
	}

	exercises, meals, err := s.fetchPools(ctx, op, p.ExerciseIDs, p.MealIDs)
	if err != nil {
		return nil, err
	}

	existing, err := s.plans.FindLatestPlan(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if existing != nil {
		if err := s.plans.DeletePlanCascade(ctx, existing.PlanID); err != nil {
			return nil, apperr.Persistence(op, err)
		}
		s.log.Info("replaced existing plan", "userId", userID, "planId", existing.PlanID)
	}

	start := s.today()
	if p.StartDate != nil {
		start = truncateDay(*p.StartDate)
	}
	end := start.AddDate(0, 0, p.PlanLengthInDays)
	if p.EndDate != nil {
		end = truncateDay(*p.EndDate)
	}

	plan, err := s.plans.CreatePlan(ctx, PlanDraft{
		UserID:               userID,
		DailyGoalCalories:    p.DailyGoalCalories,
		DailyIntakeCalories:  p.DailyIntakeCalories,
		DailyOuttakeCalories: p.DailyOuttakeCalories,
		StartDate:            start,
		EndDate:              end,
	})
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	exec.PlanID = plan.PlanID

	pools := newDayPools(exercises, s.restrictMeals(meals, profile.Limits), intakeTarget(plan))
	sess := s.newSession()
	days := min(p.PlanLengthInDays, InitialWindowDays)

	var batch Batch
	for i := range days {
		if meals := s.planDay(&batch, sess, plan.PlanID, start.AddDate(0, 0, i), pools); !meals.Unique {
			exec.DuplicateDays++
		}
	}
	if err := s.plans.InsertBatch(ctx, batch, InsertOptions{}); err != nil {
		return nil, apperr.Persistence(op, err)
	}
	exec.Days = days

	if err := s.profiles.SetCurrentPlanID(ctx, userID, plan.PlanID); err != nil {
		s.log.Warn("failed to set current plan on user", "userId", userID, "planId", plan.PlanID, "error", err)
	}

	s.log.Info("plan created", "userId", userID, "planId", plan.PlanID, "days", days)
	return &CreateResult{
		Plan:                plan,
		CreatedDays:         days,
		ExerciseCollections: len(batch.ExerciseCollections),
		MealCollections:     len(batch.MealCollections),
	}, nil
}

func clampDaysToAdd(n int) int {
	if n < 1 {
		return 1
	}
	return min(n, MaxDaysToAdd)
}

// ExtendPlan appends days after the last scheduled date of a plan. Only one
// extend per plan runs at a time; a concurrent call gets a Conflict error.
func (s *Service) ExtendPlan(ctx context.Context, userID string, p ExtendPlanParams) (res *ExtendResult, err error) {
	const op = "planner.ExtendPlan"
	exec := Execution{Operation: OpExtendPlan, UserID: userID}
	started := time.Now()
	defer func() { s.observe(ctx, &exec, started, err) }()

	profile, err := s.loadProfile(ctx, op, userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.resolvePlan(ctx, op, userID, p.PlanRef)
	if err != nil {
		return nil, err
	}
	exec.PlanID = plan.PlanID

	last, err := s.plans.FindLastScheduledDate(ctx, plan.PlanID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	continuation := plan.StartDate.AddDate(0, 0, -1)
	if last != nil {
		continuation = *last
	}
	days := clampDaysToAdd(p.DaysToAdd)

	key := LockKey{PlanID: plan.PlanID, UserID: userID}
	lease, err := s.locker.TryAcquire(ctx, key, s.lockTTL)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if lease == nil {
		return nil, apperr.Conflict(op, "plan %d is already being extended", plan.PlanID)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Error("failed to release extend lock", "planId", plan.PlanID, "error", err)
		}
	}()

	exerciseIDs, mealIDs := p.ExerciseIDs, p.MealIDs
	if len(exerciseIDs) == 0 || len(mealIDs) == 0 {
		scheduledExercises, scheduledMeals, err := s.plans.ListScheduledItemIDs(ctx, plan.PlanID)
		if err != nil {
			return nil, apperr.Persistence(op, err)
		}
		if len(exerciseIDs) == 0 {
			exerciseIDs = scheduledExercises
		}
		if len(mealIDs) == 0 {
			mealIDs = scheduledMeals
		}
	}
	if len(exerciseIDs) == 0 || len(mealIDs) == 0 {
		return nil, apperr.Validation(op, "no exercises or meals to extend plan %d with", plan.PlanID)
	}

	exercises, meals, err := s.fetchPools(ctx, op, exerciseIDs, mealIDs)
	if err != nil {
		return nil, err
	}
	groups, err := s.plans.ListMealGroups(ctx, plan.PlanID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	sess := s.newSession()
	sess.Seed(groups)

	pools := newDayPools(exercises, s.restrictMeals(meals, profile.Limits), intakeTarget(plan))
	var batch Batch
	for i := 1; i <= days; i++ {
		if meals := s.planDay(&batch, sess, plan.PlanID, continuation.AddDate(0, 0, i), pools); !meals.Unique {
			exec.DuplicateDays++
		}
	}

	err = s.plans.InsertBatch(ctx, batch, InsertOptions{TolerateDuplicates: true})
	var dup *DuplicateKeyError
	switch {
	case errors.As(err, &dup):
		s.log.Warn("skipped duplicate rows while extending plan", "planId", plan.PlanID, "skipped", dup.Skipped)
	case err != nil:
		return nil, apperr.Persistence(op, err)
	}
	exec.Days = days

	s.log.Info("plan extended", "userId", userID, "planId", plan.PlanID, "days", days)
	return &ExtendResult{
		PlanID:    plan.PlanID,
		AddedDays: days,
		StartDate: continuation.AddDate(0, 0, 1),
	}, nil
}

// GenerateSmartMealPlan seeds SmartPlanDays days of meal collections for
// the user's plan planID starting at start, drawing three or four random
// catalog meals per day. It takes no lock and does not avoid repeated
// combinations.
func (s *Service) GenerateSmartMealPlan(ctx context.Context, userID string, planID int64, start time.Time) (res *SmartPlanResult, err error) {
	const op = "planner.GenerateSmartMealPlan"
	exec := Execution{Operation: OpSmartMealPlan, UserID: userID, PlanID: planID}
	started := time.Now()
	defer func() { s.observe(ctx, &exec, started, err) }()

	if planID <= 0 {
		return nil, apperr.Validation(op, "plan id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation(op, "user id is required")
	}
	plan, err := s.plans.FindPlanByPlanID(ctx, planID, userID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if plan == nil {
		return nil, apperr.NotFound(op, "plan %d not found for user %s", planID, userID)
	}
	meals, err := s.catalog.AllMeals(ctx)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if len(meals) < MealsPerDay {
		return nil, apperr.Validation(op, "catalog has %d meals, need at least %d", len(meals), MealsPerDay)
	}

	if start.IsZero() {
		start = s.now()
	}
	start = truncateDay(start)

	sess := s.newSession()
	var collections, references Batch
	for i := range SmartPlanDays {
		listID := NewCollectionRef()
		collections.MealCollections = append(collections.MealCollections, MealCollection{
			ListID:    listID,
			PlanID:    planID,
			Date:      start.AddDate(0, 0, i),
			MealRatio: 1,
		})
		for _, id := range sess.PickRandomMeals(meals) {
			references.PlanMeals = append(references.PlanMeals, newReference(id, listID))
		}
	}

	if err := s.plans.InsertBatch(ctx, collections, InsertOptions{}); err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if err := s.plans.InsertBatch(ctx, references, InsertOptions{}); err != nil {
		return nil, apperr.Persistence(op, err)
	}
	exec.Days = SmartPlanDays

	s.log.Info("smart meal plan generated", "planId", planID, "days", SmartPlanDays, "meals", len(references.PlanMeals))
	return &SmartPlanResult{
		PlanID:          planID,
		StartDate:       start,
		Days:            SmartPlanDays,
		MealCollections: len(collections.MealCollections),
		PlanMeals:       len(references.PlanMeals),
	}, nil
}
