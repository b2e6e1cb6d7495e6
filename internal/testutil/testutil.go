// Package testutil provides sqlite-backed fixtures shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/khoii1/DA-Fitness/internal/database"
	"github.com/khoii1/DA-Fitness/internal/logger"
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.NewNop()
}

// ObservedLogger returns a logger whose entries can be inspected.
func ObservedLogger(tb testing.TB) (*logger.Logger, *observer.ObservedLogs) {
	tb.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

// DB opens a migrated database in a per-test temp directory. In-memory
// databases are avoided because every pooled connection would see its own.
func DB(tb testing.TB) *sql.DB {
	tb.Helper()
	db, err := database.NewDB(filepath.Join(tb.TempDir(), "test.db"), Logger(tb))
	if err != nil {
		tb.Fatalf("failed to init test db: %v", err)
	}
	tb.Cleanup(func() {
		_ = db.Close()
	})
	return db.SQL
}

func mustJSON(tb testing.TB, v any) string {
	tb.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		tb.Fatalf("marshal fixture: %v", err)
	}
	return string(b)
}

func SeedExercise(tb testing.TB, db *sql.DB, id string, met float64, categoryIDs ...string) {
	tb.Helper()
	if categoryIDs == nil {
		categoryIDs = []string{}
	}
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO exercises (exercise_id, name, met_value, category_ids, equipment_ids) VALUES (?, ?, ?, ?, '[]')`,
		id, "exercise "+id, met, mustJSON(tb, categoryIDs))
	if err != nil {
		tb.Fatalf("seed exercise: %v", err)
	}
}

func SeedMeal(tb testing.TB, db *sql.DB, id string, calories int, proteinSources ...string) {
	tb.Helper()
	if proteinSources == nil {
		proteinSources = []string{}
	}
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO meals (meal_id, name, calories, protein_sources, category_ids, ingredients) VALUES (?, ?, ?, ?, '[]', '[]')`,
		id, "meal "+id, calories, mustJSON(tb, proteinSources))
	if err != nil {
		tb.Fatalf("seed meal: %v", err)
	}
}

// SeedUser inserts a profile with a known date of birth and biometrics.
func SeedUser(tb testing.TB, db *sql.DB, userID string, weight, height, goal float64) {
	tb.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (user_id, gender, date_of_birth, current_weight, current_height, goal_weight, active_frequency, experience)
		 VALUES (?, 'male', '1994-01-01', ?, ?, ?, 'moderate', 'beginner')`,
		userID, weight, height, goal)
	if err != nil {
		tb.Fatalf("seed user: %v", err)
	}
}

// CountRows returns the number of rows in table.
func CountRows(tb testing.TB, db *sql.DB, table string) int {
	tb.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}
