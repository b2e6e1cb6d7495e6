package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/khoii1/DA-Fitness/internal/app"
	"github.com/khoii1/DA-Fitness/internal/config"
	"github.com/khoii1/DA-Fitness/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to initialize application", "error", err)
	}
	defer application.Close()

	if err := run(ctx, application, cfg, os.Args[1], os.Args[2:]); err != nil {
		lg.Error("command failed", "command", os.Args[1], "error", err)
		application.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "serve":
		return a.Serve(ctx)

	case "preview":
		flags := flag.NewFlagSet("preview", flag.ExitOnError)
		userID := flags.String("user", "", "User id to generate a plan for")
		asJSON := flags.Bool("json", false, "Print the preview as JSON")
		flags.Parse(args)
		if *userID == "" {
			return fmt.Errorf("-user is required")
		}
		return a.PrintPreview(ctx, *userID, *asJSON)

	case "import-catalog":
		flags := flag.NewFlagSet("import-catalog", flag.ExitOnError)
		file := flags.String("file", "", "Path to the JSON snapshot")
		flags.Parse(args)
		if *file == "" {
			return fmt.Errorf("-file is required")
		}
		return a.ImportCatalog(ctx, *file)

	case "seed-meals":
		flags := flag.NewFlagSet("seed-meals", flag.ExitOnError)
		userID := flags.String("user", "", "Owner of the plan")
		planID := flags.Int64("plan", 0, "Numeric plan id")
		start := flags.String("start", time.Now().Format(time.DateOnly), "First day (YYYY-MM-DD)")
		flags.Parse(args)
		day, err := time.Parse(time.DateOnly, *start)
		if err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
		return a.SeedMealPlan(ctx, *userID, *planID, day)

	case "metrics-cleanup":
		flags := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := flags.Int("days", cfg.MetricsRetentionDays, "Keep records for the last N days")
		flags.Parse(args)
		return a.MetricsCleanup(ctx, *days)

	case "usage":
		flags := flag.NewFlagSet("usage", flag.ExitOnError)
		days := flags.Int("days", 7, "Report the last N days")
		flags.Parse(args)
		return a.PrintUsage(ctx, *days)

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	fmt.Println("Usage: fitness-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  serve              Run the HTTP API")
	fmt.Println("  preview            Print a plan recommendation for a user")
	fmt.Println("  import-catalog     Load exercises, meals, ingredients and users from a JSON snapshot")
	fmt.Println("  seed-meals         Generate a 280-day meal schedule for a plan")
	fmt.Println("  metrics-cleanup    Remove old metric records")
	fmt.Println("  usage              Show daily operation totals")
}
