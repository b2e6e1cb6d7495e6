package plandb

import (
	"context"
	"database/sql"
)

const planColumns = `id, plan_id, user_id, daily_goal_calories, daily_intake_calories, daily_outtake_calories,
       start_date, end_date, is_extending, lock_expires_at, created_at`

func scanPlan(row *sql.Row) (Plan, error) {
	var i Plan
	err := row.Scan(
		&i.ID,
		&i.PlanID,
		&i.UserID,
		&i.DailyGoalCalories,
		&i.DailyIntakeCalories,
		&i.DailyOuttakeCalories,
		&i.StartDate,
		&i.EndDate,
		&i.IsExtending,
		&i.LockExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

const nextPlanID = `-- name: NextPlanID :one
UPDATE plan_id_sequence SET value = value + 1 WHERE id = 1 RETURNING value
`

func (q *Queries) NextPlanID(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, nextPlanID)
	var value int64
	err := row.Scan(&value)
	return value, err
}

const insertPlan = `-- name: InsertPlan :exec
INSERT INTO plans (` + planColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)
`

type InsertPlanParams struct {
	ID                   string
	PlanID               int64
	UserID               string
	DailyGoalCalories    int64
	DailyIntakeCalories  int64
	DailyOuttakeCalories int64
	StartDate            string
	EndDate              string
	CreatedAt            int64
}

func (q *Queries) InsertPlan(ctx context.Context, arg InsertPlanParams) error {
	_, err := q.db.ExecContext(ctx, insertPlan,
		arg.ID,
		arg.PlanID,
		arg.UserID,
		arg.DailyGoalCalories,
		arg.DailyIntakeCalories,
		arg.DailyOuttakeCalories,
		arg.StartDate,
		arg.EndDate,
		arg.CreatedAt,
	)
	return err
}

const getLatestPlanByUser = `-- name: GetLatestPlanByUser :one
SELECT ` + planColumns + `
FROM plans WHERE user_id = ?
ORDER BY created_at DESC, plan_id DESC
LIMIT 1
`

func (q *Queries) GetLatestPlanByUser(ctx context.Context, userID string) (Plan, error) {
	return scanPlan(q.db.QueryRowContext(ctx, getLatestPlanByUser, userID))
}

const getPlanByRecordID = `-- name: GetPlanByRecordID :one
SELECT ` + planColumns + `
FROM plans WHERE id = ? AND user_id = ?
`

type GetPlanByRecordIDParams struct {
	ID     string
	UserID string
}

func (q *Queries) GetPlanByRecordID(ctx context.Context, arg GetPlanByRecordIDParams) (Plan, error) {
	return scanPlan(q.db.QueryRowContext(ctx, getPlanByRecordID, arg.ID, arg.UserID))
}

const getPlanByPlanID = `-- name: GetPlanByPlanID :one
SELECT ` + planColumns + `
FROM plans WHERE plan_id = ? AND user_id = ?
`

type GetPlanByPlanIDParams struct {
	PlanID int64
	UserID string
}

func (q *Queries) GetPlanByPlanID(ctx context.Context, arg GetPlanByPlanIDParams) (Plan, error) {
	return scanPlan(q.db.QueryRowContext(ctx, getPlanByPlanID, arg.PlanID, arg.UserID))
}

const deletePlan = `-- name: DeletePlan :exec
DELETE FROM plans WHERE plan_id = ?
`

func (q *Queries) DeletePlan(ctx context.Context, planID int64) error {
	_, err := q.db.ExecContext(ctx, deletePlan, planID)
	return err
}

const acquireExtendLock = `-- name: AcquireExtendLock :execrows
UPDATE plans
SET is_extending = 1, lock_expires_at = ?
WHERE plan_id = ? AND user_id = ?
  AND (is_extending = 0 OR lock_expires_at IS NULL OR lock_expires_at < ?)
`

type AcquireExtendLockParams struct {
	LockExpiresAt int64
	PlanID        int64
	UserID        string
	Now           int64
}

func (q *Queries) AcquireExtendLock(ctx context.Context, arg AcquireExtendLockParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, acquireExtendLock,
		arg.LockExpiresAt,
		arg.PlanID,
		arg.UserID,
		arg.Now,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const releaseExtendLock = `-- name: ReleaseExtendLock :execrows
UPDATE plans SET is_extending = 0, lock_expires_at = NULL
WHERE plan_id = ? AND user_id = ? AND lock_expires_at = ?
`

type ReleaseExtendLockParams struct {
	PlanID        int64
	UserID        string
	LockExpiresAt int64
}

func (q *Queries) ReleaseExtendLock(ctx context.Context, arg ReleaseExtendLockParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, releaseExtendLock, arg.PlanID, arg.UserID, arg.LockExpiresAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
