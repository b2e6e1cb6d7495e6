package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/khoii1/DA-Fitness/internal/catalog"
	"github.com/khoii1/DA-Fitness/internal/config"
	"github.com/khoii1/DA-Fitness/internal/database"
	"github.com/khoii1/DA-Fitness/internal/httpapi"
	"github.com/khoii1/DA-Fitness/internal/lock"
	"github.com/khoii1/DA-Fitness/internal/logger"
	"github.com/khoii1/DA-Fitness/internal/metrics"
	"github.com/khoii1/DA-Fitness/internal/planner"
	"github.com/khoii1/DA-Fitness/internal/user"
)

// App holds the application's dependencies.
type App struct {
	cfg *config.Config
	log *logger.Logger
	out io.Writer

	db           *database.DB
	catalogRepo  *catalog.Repository
	userRepo     *user.Repository
	planRepo     *planner.PlanRepository
	planner      *planner.Service
	metricsStore *metrics.Store
	registry     *prometheus.Registry

	closers []func() error
}

// NewApp opens the database, picks the extend lock backend and wires the planner.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := database.NewDB(cfg.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		cfg:          cfg,
		log:          log,
		out:          os.Stdout,
		db:           db,
		catalogRepo:  catalog.NewRepository(db.SQL),
		userRepo:     user.NewRepository(db.SQL),
		planRepo:     planner.NewPlanRepository(db.SQL),
		metricsStore: metrics.NewStore(db.SQL),
		registry:     prometheus.NewRegistry(),
		closers:      []func() error{db.Close},
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []planner.Option{
		planner.WithRecorder(metrics.NewRecorder(metrics.NewCollectors(a.registry), a.metricsStore, log)),
		planner.WithLockTTL(cfg.LockTTL),
	}
	if cfg.LockBackend == config.LockBackendRedis {
		locker, err := lock.NewRedisLocker(ctx, lock.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to initialize redis lock: %w", err)
		}
		a.closers = append(a.closers, locker.Close)
		opts = append(opts, planner.WithLocker(locker))
	}

	a.planner = planner.NewService(a.catalogRepo, a.planRepo, a.userRepo, log, opts...)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	srv := httpapi.New(httpapi.Config{
		Service:      a.planner,
		JWTSecret:    a.cfg.JWTSecret,
		Gatherer:     a.registry,
		DatabasePath: a.cfg.DatabasePath,
		Log:          a.log,
	})
	return srv.ListenAndServe(ctx, ":"+a.cfg.Port)
}

// PrintPreview generates a plan recommendation for userID and prints it.
func (a *App) PrintPreview(ctx context.Context, userID string, asJSON bool) error {
	preview, err := a.planner.GetPlanPreview(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to generate preview: %w", err)
	}
	if asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(preview)
	}

	fmt.Fprintf(a.out, "=== PLAN PREVIEW FOR %s ===\n", preview.UserID)
	fmt.Fprintf(a.out, "BMR: %d kcal  TDEE: %d kcal\n", preview.BMR, preview.TDEE)
	fmt.Fprintf(a.out, "Daily intake: %d  outtake: %d  goal: %d\n",
		preview.DailyIntakeCalories, preview.DailyOuttakeCalories, preview.DailyGoalCalories)
	fmt.Fprintf(a.out, "Length: %d days (%s to %s)\n", preview.PlanLengthInDays,
		preview.StartDate.Format(time.DateOnly), preview.EndDate.Format(time.DateOnly))

	fmt.Fprintln(a.out, "\n=== EXERCISES ===")
	for _, e := range preview.Exercises {
		fmt.Fprintf(a.out, "- %s (MET %.1f)\n", e.Name, e.METValue)
	}
	fmt.Fprintln(a.out, "\n=== MEALS ===")
	for _, m := range preview.Meals {
		fmt.Fprintf(a.out, "- %s (%d kcal)\n", m.Name, m.Calories)
	}
	return nil
}

// SeedMealPlan writes the long-running meal schedule for the user's plan planID.
func (a *App) SeedMealPlan(ctx context.Context, userID string, planID int64, start time.Time) error {
	res, err := a.planner.GenerateSmartMealPlan(ctx, userID, planID, start)
	if err != nil {
		return fmt.Errorf("failed to seed meal plan: %w", err)
	}
	fmt.Fprintf(a.out, "Seeded %d days (%d meals) for plan %d starting %s.\n",
		res.Days, res.PlanMeals, res.PlanID, res.StartDate.Format(time.DateOnly))
	return nil
}

// MetricsCleanup removes execution metrics older than days.
func (a *App) MetricsCleanup(ctx context.Context, days int) error {
	affected, err := a.metricsStore.Cleanup(ctx, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Successfully removed %d old metric records.\n", affected)
	return nil
}

// PrintUsage prints per-day operation totals for the last days.
func (a *App) PrintUsage(ctx context.Context, days int) error {
	usage, err := a.metricsStore.GetDailyUsage(ctx, days)
	if err != nil {
		return err
	}
	if len(usage) == 0 {
		fmt.Fprintln(a.out, "No executions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tOPERATION\tCALLS\tFAILURES\tDAYS\tAVG MS")
	for _, u := range usage {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.1f\n", u.Date, u.Operation, u.TotalExecution, u.Failures, u.Days, u.AvgLatencyMS)
	}
	return w.Flush()
}
