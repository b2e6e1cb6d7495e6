package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/khoii1/DA-Fitness/internal/metrics/metricsdb"
	"github.com/khoii1/DA-Fitness/internal/planner"
)

const timestampLayout = "2006-01-02 15:04:05"

// ExecutionMetric records metadata for a single planner operation.
type ExecutionMetric struct {
	Operation string
	UserID    string
	PlanID    int64
	Days      int
	Outcome   string
	LatencyMS int64
	Timestamp time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	queries *metricsdb.Queries
	now     func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{
		queries: metricsdb.New(db),
		now:     time.Now,
	}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	err := s.queries.InsertExecutionMetric(ctx, metricsdb.InsertExecutionMetricParams{
		Operation: m.Operation,
		UserID:    m.UserID,
		PlanID:    m.PlanID,
		Days:      int64(m.Days),
		Outcome:   m.Outcome,
		LatencyMs: m.LatencyMS,
		Timestamp: ts.UTC().Format(timestampLayout),
	})
	if err != nil {
		return fmt.Errorf("failed to record %s metric: %w", m.Operation, err)
	}
	return nil
}

// FromExecution maps a planner execution to a stored metric.
func FromExecution(e planner.Execution, at time.Time) ExecutionMetric {
	return ExecutionMetric{
		Operation: e.Operation,
		UserID:    e.UserID,
		PlanID:    e.PlanID,
		Days:      e.Days,
		Outcome:   e.Outcome,
		LatencyMS: e.Latency.Milliseconds(),
		Timestamp: at,
	}
}

// DailyUsage represents totals for one operation on a single day.
type DailyUsage struct {
	Date           string
	Operation      string
	TotalExecution int
	Failures       int
	Days           int
	AvgLatencyMS   float64
}

// GetDailyUsage retrieves usage for the last N days.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := s.now().UTC().AddDate(0, 0, -days).Format(timestampLayout)
	rows, err := s.queries.GetDailyUsage(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily usage: %w", err)
	}

	results := make([]DailyUsage, 0, len(rows))
	for _, r := range rows {
		u := DailyUsage{
			Date:           r.Day,
			Operation:      r.Operation,
			TotalExecution: int(r.Count),
		}
		if r.Failures.Valid {
			u.Failures = int(r.Failures.Int64)
		}
		if r.Days.Valid {
			u.Days = int(r.Days.Int64)
		}
		if r.AvgLatencyMs.Valid {
			u.AvgLatencyMS = r.AvgLatencyMs.Float64
		}
		results = append(results, u)
	}
	return results, nil
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := s.now().UTC().AddDate(0, 0, -olderThanDays).Format(timestampLayout)
	n, err := s.queries.CleanupExecutionMetrics(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up execution metrics: %w", err)
	}
	return n, nil
}
