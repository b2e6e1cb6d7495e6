package planner

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/khoii1/DA-Fitness/internal/catalog"
	"github.com/khoii1/DA-Fitness/internal/testutil"
	"github.com/khoii1/DA-Fitness/internal/user"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func exerciseIDs(n int) []string {
	ids := make([]string, n)
	for i := range n {
		ids[i] = fmt.Sprintf("ex-%02d", i)
	}
	return ids
}

func mealIDs(n int) []string {
	ids := make([]string, n)
	for i := range n {
		ids[i] = fmt.Sprintf("meal-%02d", i)
	}
	return ids
}

func catalogMeals(n int) []catalog.Meal {
	meals := make([]catalog.Meal, n)
	for i, id := range mealIDs(n) {
		meals[i] = catalog.Meal{ID: id, Calories: 300 + i*20}
	}
	return meals
}

// seedCatalog inserts n exercises with MET 4 and m meals between 300 and 300+20m kcal.
func seedCatalog(t *testing.T, db *sql.DB, n, m int) {
	t.Helper()
	for _, id := range exerciseIDs(n) {
		testutil.SeedExercise(t, db, id, 4)
	}
	for i, id := range mealIDs(m) {
		if i%2 == 0 {
			testutil.SeedMeal(t, db, id, 300+i*20, "chicken")
		} else {
			testutil.SeedMeal(t, db, id, 300+i*20)
		}
	}
}

type captureRecorder struct {
	mu    sync.Mutex
	execs []Execution
}

func (r *captureRecorder) RecordExecution(_ context.Context, e Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, e)
}

func (r *captureRecorder) last(op string) (Execution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.execs) - 1; i >= 0; i-- {
		if r.execs[i].Operation == op {
			return r.execs[i], true
		}
	}
	return Execution{}, false
}

type fixture struct {
	db       *sql.DB
	svc      *Service
	plans    *PlanRepository
	recorder *captureRecorder
}

func newFixture(t *testing.T, gw func(catalog.Gateway) catalog.Gateway, opts ...Option) *fixture {
	t.Helper()
	db := testutil.DB(t)
	seedCatalog(t, db, 15, 20)
	testutil.SeedUser(t, db, "u1", 80, 180, 75)

	var gateway catalog.Gateway = catalog.NewRepository(db)
	if gw != nil {
		gateway = gw(gateway)
	}
	plans := NewPlanRepository(db)
	plans.now = func() time.Time { return testNow }
	rec := &captureRecorder{}

	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithRecorder(rec),
		WithSessionOptions(WithSeed(1, 2)),
	}, opts...)
	svc := NewService(gateway, plans, user.NewRepository(db), testutil.Logger(t), opts...)
	return &fixture{db: db, svc: svc, plans: plans, recorder: rec}
}

func (f *fixture) createPlan(t *testing.T, length int) *CreateResult {
	t.Helper()
	res, err := f.svc.CreatePlan(context.Background(), "u1", CreatePlanParams{
		PlanLengthInDays:     length,
		DailyGoalCalories:    1800,
		DailyIntakeCalories:  2100,
		DailyOuttakeCalories: 300,
		ExerciseIDs:          exerciseIDs(15),
		MealIDs:              mealIDs(20),
	})
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	return res
}

// blockingGateway parks the first MealsByIDs call until release is closed.
type blockingGateway struct {
	catalog.Gateway
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	armed   bool
	mu      sync.Mutex
}

func (g *blockingGateway) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
}

func (g *blockingGateway) MealsByIDs(ctx context.Context, ids []string) ([]catalog.Meal, error) {
	g.mu.Lock()
	armed := g.armed
	g.mu.Unlock()
	if armed {
		first := false
		g.once.Do(func() { first = true })
		if first {
			close(g.entered)
			<-g.release
		}
	}
	return g.Gateway.MealsByIDs(ctx, ids)
}
