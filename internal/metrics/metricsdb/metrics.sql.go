package metricsdb

import (
	"context"
	"database/sql"
)

const insertExecutionMetric = `-- name: InsertExecutionMetric :exec
INSERT INTO execution_metrics (operation, user_id, plan_id, days, outcome, latency_ms, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type InsertExecutionMetricParams struct {
	Operation string
	UserID    string
	PlanID    int64
	Days      int64
	Outcome   string
	LatencyMs int64
	Timestamp string
}

func (q *Queries) InsertExecutionMetric(ctx context.Context, arg InsertExecutionMetricParams) error {
	_, err := q.db.ExecContext(ctx, insertExecutionMetric,
		arg.Operation,
		arg.UserID,
		arg.PlanID,
		arg.Days,
		arg.Outcome,
		arg.LatencyMs,
		arg.Timestamp,
	)
	return err
}

const getDailyUsage = `-- name: GetDailyUsage :many
SELECT substr(timestamp, 1, 10) AS day,
       operation,
       COUNT(*) AS count,
       SUM(CASE WHEN outcome = 'success' THEN 0 ELSE 1 END) AS failures,
       SUM(days) AS days,
       AVG(latency_ms) AS avg_latency_ms
FROM execution_metrics
WHERE timestamp >= ?
GROUP BY day, operation
ORDER BY day DESC, operation
`

type GetDailyUsageRow struct {
	Day          string
	Operation    string
	Count        int64
	Failures     sql.NullInt64
	Days         sql.NullInt64
	AvgLatencyMs sql.NullFloat64
}

func (q *Queries) GetDailyUsage(ctx context.Context, since string) ([]GetDailyUsageRow, error) {
	rows, err := q.db.QueryContext(ctx, getDailyUsage, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailyUsageRow
	for rows.Next() {
		var i GetDailyUsageRow
		if err := rows.Scan(
			&i.Day,
			&i.Operation,
			&i.Count,
			&i.Failures,
			&i.Days,
			&i.AvgLatencyMs,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const cleanupExecutionMetrics = `-- name: CleanupExecutionMetrics :execrows
DELETE FROM execution_metrics WHERE timestamp < ?
`

func (q *Queries) CleanupExecutionMetrics(ctx context.Context, before string) (int64, error) {
	result, err := q.db.ExecContext(ctx, cleanupExecutionMetrics, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
