package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/khoii1/DA-Fitness/internal/planner"
	"github.com/khoii1/DA-Fitness/internal/testutil"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	store := NewStore(db)
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	metrics := []ExecutionMetric{
		{Operation: planner.OpExtendPlan, UserID: "u1", PlanID: 1, Days: 7, Outcome: planner.OutcomeSuccess, LatencyMS: 10, Timestamp: fixed.Add(-time.Hour)},
		{Operation: planner.OpExtendPlan, UserID: "u1", PlanID: 1, Days: 0, Outcome: planner.OutcomeConflict, LatencyMS: 30, Timestamp: fixed.Add(-2 * time.Hour)},
		{Operation: planner.OpCreatePlan, UserID: "u2", PlanID: 2, Days: 7, Outcome: planner.OutcomeSuccess, LatencyMS: 50, Timestamp: fixed.Add(-time.Hour)},
		{Operation: planner.OpCreatePlan, UserID: "u3", PlanID: 3, Days: 7, Outcome: planner.OutcomeSuccess, LatencyMS: 5, Timestamp: fixed.AddDate(0, 0, -40)},
	}
	for _, m := range metrics {
		if err := store.Record(ctx, m); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	t.Run("daily usage", func(t *testing.T) {
		usage, err := store.GetDailyUsage(ctx, 7)
		if err != nil {
			t.Fatalf("GetDailyUsage failed: %v", err)
		}
		if len(usage) != 2 {
			t.Fatalf("Expected 2 usage rows, got %d", len(usage))
		}

		byOp := map[string]DailyUsage{}
		for _, u := range usage {
			if u.Date != "2026-03-10" {
				t.Errorf("Expected date 2026-03-10, got %s", u.Date)
			}
			byOp[u.Operation] = u
		}
		extend := byOp[planner.OpExtendPlan]
		if extend.TotalExecution != 2 || extend.Failures != 1 || extend.Days != 7 {
			t.Errorf("Unexpected extend usage: %+v", extend)
		}
		if extend.AvgLatencyMS != 20 {
			t.Errorf("Expected avg latency 20, got %v", extend.AvgLatencyMS)
		}
		if byOp[planner.OpCreatePlan].TotalExecution != 1 {
			t.Errorf("Expected 1 recent create, got %d", byOp[planner.OpCreatePlan].TotalExecution)
		}
	})

	t.Run("cleanup", func(t *testing.T) {
		n, err := store.Cleanup(ctx, 30)
		if err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 deleted row, got %d", n)
		}
		if got := testutil.CountRows(t, db, "execution_metrics"); got != 3 {
			t.Errorf("Expected 3 remaining rows, got %d", got)
		}
	})
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	collectors := NewCollectors(prometheus.NewRegistry())
	rec := NewRecorder(collectors, NewStore(db), testutil.Logger(t))

	rec.RecordExecution(ctx, planner.Execution{
		Operation:     planner.OpExtendPlan,
		UserID:        "u1",
		PlanID:        1,
		Days:          5,
		DuplicateDays: 2,
		Outcome:       planner.OutcomeSuccess,
		Latency:       15 * time.Millisecond,
	})
	rec.RecordExecution(ctx, planner.Execution{
		Operation: planner.OpExtendPlan,
		UserID:    "u1",
		PlanID:    1,
		Outcome:   planner.OutcomeConflict,
	})

	if got := promtest.ToFloat64(collectors.OperationsTotal.WithLabelValues(planner.OpExtendPlan, planner.OutcomeSuccess)); got != 1 {
		t.Errorf("Expected 1 successful extend, got %v", got)
	}
	if got := promtest.ToFloat64(collectors.DaysMaterialized.WithLabelValues(planner.OpExtendPlan)); got != 5 {
		t.Errorf("Expected 5 materialized days, got %v", got)
	}
	if got := promtest.ToFloat64(collectors.DuplicateMealDaysTotal); got != 2 {
		t.Errorf("Expected 2 duplicate days, got %v", got)
	}
	if got := promtest.ToFloat64(collectors.LockConflictsTotal); got != 1 {
		t.Errorf("Expected 1 lock conflict, got %v", got)
	}
	if got := testutil.CountRows(t, db, "execution_metrics"); got != 2 {
		t.Errorf("Expected 2 stored metrics, got %d", got)
	}
}

func TestRecorderWithoutStore(t *testing.T) {
	collectors := NewCollectors(prometheus.NewRegistry())
	rec := NewRecorder(collectors, nil, testutil.Logger(t))
	rec.RecordExecution(context.Background(), planner.Execution{Operation: planner.OpCreatePlan, Outcome: planner.OutcomeError})

	if got := promtest.ToFloat64(collectors.OperationsTotal.WithLabelValues(planner.OpCreatePlan, planner.OutcomeError)); got != 1 {
		t.Errorf("Expected 1 failed create, got %v", got)
	}
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	if err := os.WriteFile(dbPath, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dbPath+"-wal", make([]byte, 1024), 0o644); err != nil {
		t.Fatal(err)
	}

	h := GetSysHealth(dbPath)
	if h.DatabaseSize != "3.0 KB" {
		t.Errorf("Expected 3.0 KB, got %s", h.DatabaseSize)
	}
	if h.Goroutines < 1 {
		t.Errorf("Expected at least one goroutine, got %d", h.Goroutines)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:               "0 B",
		512:             "512 B",
		1536:            "1.5 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d): expected %s, got %s", in, want, got)
		}
	}
}
