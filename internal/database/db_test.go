package database

import (
	"path/filepath"
	"testing"

	"github.com/khoii1/DA-Fitness/internal/logger"
)

func TestNewDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "planner.db")

	db, err := NewDB(dbPath, logger.NewNop())
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer db.Close()

	tables := []string{
		"users", "ingredients", "exercises", "meals", "plans", "plan_id_sequence",
		"collection_settings", "exercise_collections", "meal_collections",
		"plan_exercises", "plan_meals", "execution_metrics",
	}
	for _, table := range tables {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist, got %v", table, err)
		}
	}

	var seq int64
	if err := db.SQL.QueryRow(`SELECT value FROM plan_id_sequence WHERE id = 1`).Scan(&seq); err != nil {
		t.Fatalf("Failed to read plan id sequence: %v", err)
	}
	if seq != 0 {
		t.Errorf("Expected sequence to start at 0, got %d", seq)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "planner.db")

	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("First migration run failed: %v", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
}
