package planner

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/khoii1/DA-Fitness/internal/apperr"
	"github.com/khoii1/DA-Fitness/internal/catalog"
	"github.com/khoii1/DA-Fitness/internal/logger"
	"github.com/khoii1/DA-Fitness/internal/nutrition"
	"github.com/khoii1/DA-Fitness/internal/user"
)

// Operation names reported to the Recorder.
const (
	OpGeneratePlan  = "generate_plan"
	OpCreatePlan    = "create_plan"
	OpExtendPlan    = "extend_plan"
	OpSmartMealPlan = "smart_meal_plan"
)

// Service is the plan engine: it turns a profile into calorie targets and
// candidate pools, and materializes, extends and reads back plans.
type Service struct {
	catalog     catalog.Gateway
	plans       PlanStore
	profiles    ProfileStore
	locker      Locker
	recorder    Recorder
	log         *logger.Logger
	now         func() time.Time
	lockTTL     time.Duration
	sessionOpts []SessionOption
}

type Option func(*Service)

// WithLocker replaces the default plan-row locker.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithSessionOptions applies opts to every Session the service creates.
func WithSessionOptions(opts ...SessionOption) Option {
	return func(s *Service) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// NewService creates a new Service instance.
func NewService(gw catalog.Gateway, plans PlanStore, profiles ProfileStore, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		catalog:  gw,
		plans:    plans,
		profiles: profiles,
		recorder: nopRecorder{},
		log:      log.With("component", "planner"),
		now:      time.Now,
		lockTTL:  DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = NewFieldLocker(plans)
	}
	return s
}

func (s *Service) newSession() *Session {
	return NewSession(s.sessionOpts...)
}

func (s *Service) today() time.Time {
	return truncateDay(s.now())
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return OutcomeInvalid
	case apperr.KindNotFound:
		return OutcomeNotFound
	case apperr.KindConflict:
		return OutcomeConflict
	}
	return OutcomeError
}

func (s *Service) observe(ctx context.Context, e *Execution, started time.Time, err error) {
	e.Latency = time.Since(started)
	e.Outcome = outcomeOf(err)
	s.recorder.RecordExecution(ctx, *e)
}

// PlanPreview is a recommendation that has not been persisted.
type PlanPreview struct {
	UserID string `json:"userId"`
	BMR    int    `json:"bmr"`
	TDEE   int    `json:"tdee"`
	nutrition.CalorieGoals
	PlanLengthInDays int                `json:"planLengthInDays"`
	StartDate        time.Time          `json:"startDate"`
	EndDate          time.Time          `json:"endDate"`
	ExerciseIDs      []string           `json:"exerciseIds"`
	MealIDs          []string           `json:"mealIds"`
	Exercises        []catalog.Exercise `json:"exercises,omitempty"`
	Meals            []catalog.Meal     `json:"meals,omitempty"`
}

// GeneratePlan computes calorie targets for profile and selects candidate
// exercise and meal pools. Nothing is persisted.
func (s *Service) GeneratePlan(ctx context.Context, profile *user.Profile) (preview *PlanPreview, err error) {
	const op = "planner.GeneratePlan"
	exec := Execution{Operation: OpGeneratePlan}
	started := time.Now()
	defer func() { s.observe(ctx, &exec, started, err) }()

	if profile == nil {
		return nil, apperr.Validation(op, "profile is required")
	}
	exec.UserID = profile.UserID
	if err := nutrition.ValidateBiometrics(profile.CurrentWeight, profile.CurrentHeight, profile.GoalWeight); err != nil {
		return nil, err
	}

	now := s.now()
	bmr := nutrition.CalculateBMR(profile.CurrentWeight, profile.CurrentHeight, float64(profile.Age(now)), profile.Gender)
	tdee := nutrition.CalculateTDEE(bmr, profile.ActiveFrequency)
	goals := nutrition.CalculateDailyCalorieGoal(tdee, profile.CurrentWeight, profile.GoalWeight)
	length := nutrition.CalculatePlanLength(profile.CurrentWeight, profile.GoalWeight, nutrition.DefaultWeeklyRate)
	exec.Days = length

	sess := s.newSession()
	var exerciseIDs, mealIDs []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		exercises, err := s.catalog.AllExercises(gctx)
		if err != nil {
			return apperr.Persistence(op, err)
		}
		exerciseIDs = sess.SelectExercises(exercises, ExerciseConstraints{
			Experience:    profile.Experience,
			Limits:        profile.Limits,
			WeightKg:      profile.CurrentWeight,
			TargetOuttake: goals.DailyOuttakeCalories,
		})
		return nil
	})
	g.Go(func() error {
		meals, err := s.catalog.AllMeals(gctx)
		if err != nil {
			return apperr.Persistence(op, err)
		}
		mealIDs = RecommendMeals(meals, profile.Limits, goals.DailyIntakeCalories)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start := truncateDay(now)
	return &PlanPreview{
		UserID:           profile.UserID,
		BMR:              bmr,
		TDEE:             tdee,
		CalorieGoals:     goals,
		PlanLengthInDays: length,
		StartDate:        start,
		EndDate:          start.AddDate(0, 0, length),
		ExerciseIDs:      exerciseIDs,
		MealIDs:          mealIDs,
	}, nil
}

func (s *Service) loadProfile(ctx context.Context, op, userID string) (*user.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation(op, "user id is required")
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if profile == nil {
		return nil, apperr.NotFound(op, "user %s not found", userID)
	}
	return profile, nil
}

// GeneratePlanForUser loads the user's profile and calls GeneratePlan.
func (s *Service) GeneratePlanForUser(ctx context.Context, userID string) (*PlanPreview, error) {
	profile, err := s.loadProfile(ctx, "planner.GeneratePlanForUser", userID)
	if err != nil {
		return nil, err
	}
	return s.GeneratePlan(ctx, profile)
}

// GetPlanPreview is GeneratePlanForUser with exercise and meal details attached.
func (s *Service) GetPlanPreview(ctx context.Context, userID string) (*PlanPreview, error) {
	const op = "planner.GetPlanPreview"
	preview, err := s.GeneratePlanForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		exercises, err := s.catalog.ExercisesByIDs(gctx, preview.ExerciseIDs)
		if err != nil {
			return apperr.Persistence(op, err)
		}
		preview.Exercises = exercises
		return nil
	})
	g.Go(func() error {
		meals, err := s.catalog.MealsByIDs(gctx, preview.MealIDs)
		if err != nil {
			return apperr.Persistence(op, err)
		}
		preview.Meals = meals
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return preview, nil
}

// GetLatestPlan returns the user's most recent plan.
func (s *Service) GetLatestPlan(ctx context.Context, userID string) (*Plan, error) {
	const op = "planner.GetLatestPlan"
	plan, err := s.plans.FindLatestPlan(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if plan == nil {
		return nil, apperr.NotFound(op, "no plan found for user %s", userID)
	}
	return plan, nil
}

// GetSchedule returns the day collections of the plan identified by planRef
// (record id or numeric plan id), or of the user's latest plan.
func (s *Service) GetSchedule(ctx context.Context, userID, planRef string) (*Schedule, error) {
	const op = "planner.GetSchedule"
	plan, err := s.resolvePlan(ctx, op, userID, planRef)
	if err != nil {
		return nil, err
	}
	schedule, err := s.plans.ListSchedule(ctx, plan.PlanID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	schedule.Plan = plan
	return schedule, nil
}

// resolvePlan tries planRef as a record id, then as a numeric plan id, and
// falls back to the user's latest plan. Lookups are scoped to userID.
func (s *Service) resolvePlan(ctx context.Context, op, userID, planRef string) (*Plan, error) {
	planRef = strings.TrimSpace(planRef)
	if planRef != "" {
		if id, err := uuid.Parse(planRef); err == nil {
			plan, err := s.plans.FindPlanByRecordID(ctx, id, userID)
			if err != nil {
				return nil, apperr.Persistence(op, err)
			}
			if plan != nil {
				return plan, nil
			}
		}
		if planID, err := strconv.ParseInt(planRef, 10, 64); err == nil {
			plan, err := s.plans.FindPlanByPlanID(ctx, planID, userID)
			if err != nil {
				return nil, apperr.Persistence(op, err)
			}
			if plan != nil {
				return plan, nil
			}
		}
	}

	plan, err := s.plans.FindLatestPlan(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if plan == nil {
		return nil, apperr.NotFound(op, "no plan found for user %s", userID)
	}
	return plan, nil
}
