package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/khoii1/DA-Fitness/internal/planner/plandb"
)

// Rows per multi-row INSERT; keeps the bound parameter count far below sqlite's limit.
const insertChunkSize = 500

// PlanRepository is a database-backed PlanStore.
type PlanRepository struct {
	queries *plandb.Queries
	db      *sql.DB
	now     func() time.Time
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(d *sql.DB) *PlanRepository {
	return &PlanRepository{
		queries: plandb.New(d),
		db:      d,
		now:     time.Now,
	}
}

var _ PlanStore = (*PlanRepository)(nil)

// CreatePlan allocates the next planID and inserts the plan in one transaction.
func (r *PlanRepository) CreatePlan(ctx context.Context, d PlanDraft) (*Plan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin plan insert: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	planID, err := q.NextPlanID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate plan id: %w", err)
	}

	p := &Plan{
		ID:                   uuid.New(),
		PlanID:               planID,
		UserID:               d.UserID,
		DailyGoalCalories:    d.DailyGoalCalories,
		DailyIntakeCalories:  d.DailyIntakeCalories,
		DailyOuttakeCalories: d.DailyOuttakeCalories,
		StartDate:            truncateDay(d.StartDate),
		EndDate:              truncateDay(d.EndDate),
		CreatedAt:            r.now().UTC().Truncate(time.Millisecond),
	}
	err = q.InsertPlan(ctx, plandb.InsertPlanParams{
		ID:                   p.ID.String(),
		PlanID:               p.PlanID,
		UserID:               p.UserID,
		DailyGoalCalories:    int64(p.DailyGoalCalories),
		DailyIntakeCalories:  int64(p.DailyIntakeCalories),
		DailyOuttakeCalories: int64(p.DailyOuttakeCalories),
		StartDate:            p.StartDate.Format(dateLayout),
		EndDate:              p.EndDate.Format(dateLayout),
		CreatedAt:            p.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert plan %d: %w", planID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit plan insert: %w", err)
	}
	return p, nil
}

// DeletePlanCascade removes the plan's references, collections, the settings
// no longer used by any collection and finally the plan itself.
func (r *PlanRepository) DeletePlanCascade(ctx context.Context, planID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin plan delete: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	settingIDs, err := q.ListSettingIDsByPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to list settings for plan %d: %w", planID, err)
	}
	if err := q.DeletePlanExercisesByPlan(ctx, planID); err != nil {
		return fmt.Errorf("failed to delete exercise references for plan %d: %w", planID, err)
	}
	if err := q.DeletePlanMealsByPlan(ctx, planID); err != nil {
		return fmt.Errorf("failed to delete meal references for plan %d: %w", planID, err)
	}
	if err := q.DeleteExerciseCollectionsByPlan(ctx, planID); err != nil {
		return fmt.Errorf("failed to delete exercise collections for plan %d: %w", planID, err)
	}
	if err := q.DeleteMealCollectionsByPlan(ctx, planID); err != nil {
		return fmt.Errorf("failed to delete meal collections for plan %d: %w", planID, err)
	}
	for _, id := range settingIDs {
		if err := q.DeleteSettingIfOrphaned(ctx, id); err != nil {
			return fmt.Errorf("failed to delete setting %s: %w", id, err)
		}
	}
	if err := q.DeletePlan(ctx, planID); err != nil {
		return fmt.Errorf("failed to delete plan %d: %w", planID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan delete: %w", err)
	}
	return nil
}

func (r *PlanRepository) FindLatestPlan(ctx context.Context, userID string) (*Plan, error) {
	row, err := r.queries.GetLatestPlanByUser(ctx, userID)
	return r.planOrNil(row, err, "latest plan for user "+userID)
}

func (r *PlanRepository) FindPlanByRecordID(ctx context.Context, id uuid.UUID, userID string) (*Plan, error) {
	row, err := r.queries.GetPlanByRecordID(ctx, plandb.GetPlanByRecordIDParams{ID: id.String(), UserID: userID})
	return r.planOrNil(row, err, "plan "+id.String())
}

func (r *PlanRepository) FindPlanByPlanID(ctx context.Context, planID int64, userID string) (*Plan, error) {
	row, err := r.queries.GetPlanByPlanID(ctx, plandb.GetPlanByPlanIDParams{PlanID: planID, UserID: userID})
	return r.planOrNil(row, err, fmt.Sprintf("plan %d", planID))
}

func (r *PlanRepository) planOrNil(row plandb.Plan, err error, what string) (*Plan, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	p, err := planFromRow(row)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return p, nil
}

func planFromRow(row plandb.Plan) (*Plan, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(dateLayout, row.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse(dateLayout, row.EndDate)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		ID:                   id,
		PlanID:               row.PlanID,
		UserID:               row.UserID,
		DailyGoalCalories:    int(row.DailyGoalCalories),
		DailyIntakeCalories:  int(row.DailyIntakeCalories),
		DailyOuttakeCalories: int(row.DailyOuttakeCalories),
		StartDate:            start,
		EndDate:              end,
		IsExtending:          row.IsExtending != 0,
		CreatedAt:            time.UnixMilli(row.CreatedAt).UTC(),
	}
	if row.LockExpiresAt.Valid {
		t := time.UnixMilli(row.LockExpiresAt.Int64).UTC()
		p.LockExpiresAt = &t
	}
	return p, nil
}

// FindLastScheduledDate returns the later of the last exercise and meal
// collection dates, or nil when the plan has no collections.
func (r *PlanRepository) FindLastScheduledDate(ctx context.Context, planID int64) (*time.Time, error) {
	exerciseMax, err := r.queries.MaxExerciseCollectionDate(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last exercise date for plan %d: %w", planID, err)
	}
	mealMax, err := r.queries.MaxMealCollectionDate(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last meal date for plan %d: %w", planID, err)
	}

	var last *time.Time
	for _, v := range []sql.NullString{exerciseMax, mealMax} {
		if !v.Valid || v.String == "" {
			continue
		}
		t, err := time.Parse(dateLayout, v.String)
		if err != nil {
			return nil, fmt.Errorf("invalid collection date %q: %w", v.String, err)
		}
		if last == nil || t.After(*last) {
			last = &t
		}
	}
	return last, nil
}

type rowSet struct {
	table   string
	columns []string
	rows    [][]any
}

func batchRowSets(b Batch) []rowSet {
	settings := rowSet{table: "collection_settings", columns: []string{
		"id", "rounds", "per_round", "warm_up", "shuffle", "exercise_time", "transition_time", "rest_time", "rest_frequency",
	}}
	for _, s := range b.Settings {
		settings.rows = append(settings.rows, []any{
			s.ID.String(), s.Rounds, s.PerRound, s.WarmUp, s.Shuffle, s.ExerciseTime, s.TransitionTime, s.RestTime, s.RestFrequency,
		})
	}

	exerciseCollections := rowSet{table: "exercise_collections", columns: []string{"list_id", "plan_id", "date", "setting_id"}}
	for _, c := range b.ExerciseCollections {
		exerciseCollections.rows = append(exerciseCollections.rows, []any{
			c.ListID.String(), c.PlanID, c.Date.Format(dateLayout), c.SettingID.String(),
		})
	}

	planExercises := rowSet{table: "plan_exercises", columns: []string{"id", "exercise_id", "list_id"}}
	for _, ref := range b.PlanExercises {
		planExercises.rows = append(planExercises.rows, []any{ref.ID.String(), ref.ItemID, ref.ListID.String()})
	}

	mealCollections := rowSet{table: "meal_collections", columns: []string{"list_id", "plan_id", "date", "meal_ratio"}}
	for _, c := range b.MealCollections {
		mealCollections.rows = append(mealCollections.rows, []any{
			c.ListID.String(), c.PlanID, c.Date.Format(dateLayout), c.MealRatio,
		})
	}

	planMeals := rowSet{table: "plan_meals", columns: []string{"id", "meal_id", "list_id"}}
	for _, ref := range b.PlanMeals {
		planMeals.rows = append(planMeals.rows, []any{ref.ID.String(), ref.ItemID, ref.ListID.String()})
	}

	return []rowSet{settings, exerciseCollections, planExercises, mealCollections, planMeals}
}

// InsertBatch writes the batch in one transaction, one pass per entity type.
// With TolerateDuplicates, rows are inserted one at a time and key collisions
// are skipped; the skipped count comes back as *DuplicateKeyError after commit.
func (r *PlanRepository) InsertBatch(ctx context.Context, b Batch, opts InsertOptions) error {
	if b.Len() == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch insert: %w", err)
	}
	defer tx.Rollback()

	skipped := 0
	for _, set := range batchRowSets(b) {
		if len(set.rows) == 0 {
			continue
		}
		if opts.TolerateDuplicates {
			n, err := insertRowsTolerant(ctx, tx, set)
			if err != nil {
				return fmt.Errorf("failed to insert %s: %w", set.table, err)
			}
			skipped += n
			continue
		}
		if err := insertRowsBulk(ctx, tx, set); err != nil {
			return fmt.Errorf("failed to insert %s: %w", set.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch insert: %w", err)
	}
	if skipped > 0 {
		return &DuplicateKeyError{Skipped: skipped}
	}
	return nil
}

func placeholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

func insertRowsBulk(ctx context.Context, tx *sql.Tx, set rowSet) error {
	prefix := "INSERT INTO " + set.table + " (" + strings.Join(set.columns, ", ") + ") VALUES "
	row := placeholders(len(set.columns))

	for start := 0; start < len(set.rows); start += insertChunkSize {
		chunk := set.rows[start:min(start+insertChunkSize, len(set.rows))]
		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(set.columns))
		for i, r := range chunk {
			values[i] = row
			args = append(args, r...)
		}
		if _, err := tx.ExecContext(ctx, prefix+strings.Join(values, ", "), args...); err != nil {
			return err
		}
	}
	return nil
}

func insertRowsTolerant(ctx context.Context, tx *sql.Tx, set rowSet) (int, error) {
	query := "INSERT INTO " + set.table + " (" + strings.Join(set.columns, ", ") + ") VALUES " + placeholders(len(set.columns))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	skipped := 0
	for _, r := range set.rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			if isDuplicateKey(err) {
				skipped++
				continue
			}
			return skipped, err
		}
	}
	return skipped, nil
}

func isDuplicateKey(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	// Extended codes may be disabled on the connection; fall back to the primary code.
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
}

// ListMealGroups returns the meal ids of every meal collection in the plan.
func (r *PlanRepository) ListMealGroups(ctx context.Context, planID int64) (map[CollectionRef][]string, error) {
	rows, err := r.queries.ListMealRefsByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal references for plan %d: %w", planID, err)
	}
	groups := make(map[CollectionRef][]string)
	for _, row := range rows {
		ref, err := ParseCollectionRef(row.ListID)
		if err != nil {
			return nil, err
		}
		groups[ref] = append(groups[ref], row.ItemID)
	}
	return groups, nil
}

func (r *PlanRepository) ListScheduledItemIDs(ctx context.Context, planID int64) ([]string, []string, error) {
	exerciseIDs, err := r.queries.ListDistinctExerciseIDsByPlan(ctx, planID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list scheduled exercises for plan %d: %w", planID, err)
	}
	mealIDs, err := r.queries.ListDistinctMealIDsByPlan(ctx, planID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list scheduled meals for plan %d: %w", planID, err)
	}
	return exerciseIDs, mealIDs, nil
}

// ListSchedule returns the plan's collections ordered by date with their items.
// The Plan field is left for the caller to fill.
func (r *PlanRepository) ListSchedule(ctx context.Context, planID int64) (*Schedule, error) {
	exerciseRows, err := r.queries.ListExerciseCollectionsWithSettings(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercise collections for plan %d: %w", planID, err)
	}
	exerciseRefs, err := r.queries.ListExerciseRefsByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercise references for plan %d: %w", planID, err)
	}
	mealRows, err := r.queries.ListMealCollectionsByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal collections for plan %d: %w", planID, err)
	}
	mealRefs, err := r.queries.ListMealRefsByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal references for plan %d: %w", planID, err)
	}

	exerciseItems := groupItems(exerciseRefs)
	mealItems := groupItems(mealRefs)

	schedule := &Schedule{
		Exercises: make([]ExerciseDay, 0, len(exerciseRows)),
		Meals:     make([]MealDay, 0, len(mealRows)),
	}
	for _, row := range exerciseRows {
		listID, err := ParseCollectionRef(row.ListID)
		if err != nil {
			return nil, err
		}
		settingID, err := uuid.Parse(row.SettingID)
		if err != nil {
			return nil, fmt.Errorf("invalid setting id %q: %w", row.SettingID, err)
		}
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid collection date %q: %w", row.Date, err)
		}
		schedule.Exercises = append(schedule.Exercises, ExerciseDay{
			ListID: listID,
			Date:   date,
			Setting: CollectionSetting{
				ID:             settingID,
				Rounds:         int(row.Rounds),
				PerRound:       int(row.PerRound),
				WarmUp:         row.WarmUp != 0,
				Shuffle:        row.Shuffle != 0,
				ExerciseTime:   int(row.ExerciseTime),
				TransitionTime: int(row.TransitionTime),
				RestTime:       int(row.RestTime),
				RestFrequency:  int(row.RestFrequency),
			},
			ExerciseIDs: exerciseItems[row.ListID],
		})
	}
	for _, row := range mealRows {
		listID, err := ParseCollectionRef(row.ListID)
		if err != nil {
			return nil, err
		}
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid collection date %q: %w", row.Date, err)
		}
		schedule.Meals = append(schedule.Meals, MealDay{
			ListID:    listID,
			Date:      date,
			MealRatio: row.MealRatio,
			MealIDs:   mealItems[row.ListID],
		})
	}
	return schedule, nil
}

func groupItems(rows []plandb.ListItemRow) map[string][]string {
	out := make(map[string][]string)
	for _, row := range rows {
		out[row.ListID] = append(out[row.ListID], row.ItemID)
	}
	return out
}

// CompareAndSetLock sets the extend lock unless an unexpired lock is held.
func (r *PlanRepository) CompareAndSetLock(ctx context.Context, planID int64, userID string, now, expiresAt time.Time) (bool, error) {
	n, err := r.queries.AcquireExtendLock(ctx, plandb.AcquireExtendLockParams{
		LockExpiresAt: expiresAt.UnixMilli(),
		PlanID:        planID,
		UserID:        userID,
		Now:           now.UnixMilli(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to acquire extend lock on plan %d: %w", planID, err)
	}
	return n == 1, nil
}

// ClearLock releases the extend lock if it still carries expiresAt, which
// means no other request has taken it over since. It reports whether the
// lock was cleared.
func (r *PlanRepository) ClearLock(ctx context.Context, planID int64, userID string, expiresAt time.Time) (bool, error) {
	n, err := r.queries.ReleaseExtendLock(ctx, plandb.ReleaseExtendLockParams{
		PlanID:        planID,
		UserID:        userID,
		LockExpiresAt: expiresAt.UnixMilli(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to release extend lock on plan %d: %w", planID, err)
	}
	return n == 1, nil
}
