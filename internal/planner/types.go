package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/khoii1/DA-Fitness/internal/user"
)

const (
	// InitialWindowDays is how many days a new plan is materialized up front;
	// the rest is added through ExtendPlan.
	InitialWindowDays = 7
	// MaxDaysToAdd bounds a single extend call.
	MaxDaysToAdd = 30
	// SmartPlanDays is the length of the administrative meal seeding run.
	SmartPlanDays = 280
	// DefaultLockTTL is how long an extend lock is honoured before it is considered stale.
	DefaultLockTTL = 30 * time.Second

	dateLayout = "2006-01-02"
)

// Plan is a user's fitness plan. PlanID is the stable numeric key that
// collections point at; ID is the opaque record identity.
type Plan struct {
	ID                   uuid.UUID  `json:"id"`
	PlanID               int64      `json:"planId"`
	UserID               string     `json:"userId"`
	DailyGoalCalories    int        `json:"dailyGoalCalories"`
	DailyIntakeCalories  int        `json:"dailyIntakeCalories"`
	DailyOuttakeCalories int        `json:"dailyOuttakeCalories"`
	StartDate            time.Time  `json:"startDate"`
	EndDate              time.Time  `json:"endDate"`
	IsExtending          bool       `json:"isExtending"`
	LockExpiresAt        *time.Time `json:"lockExpiresAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// PlanDraft is what the store needs to insert a plan; PlanID is allocated by the store.
type PlanDraft struct {
	UserID               string
	DailyGoalCalories    int
	DailyIntakeCalories  int
	DailyOuttakeCalories int
	StartDate            time.Time
	EndDate              time.Time
}

// CollectionRef identifies one day's exercise or meal collection.
type CollectionRef struct {
	id uuid.UUID
}

func NewCollectionRef() CollectionRef {
	return CollectionRef{id: uuid.New()}
}

func ParseCollectionRef(s string) (CollectionRef, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CollectionRef{}, fmt.Errorf("invalid collection ref %q: %w", s, err)
	}
	return CollectionRef{id: id}, nil
}

func (r CollectionRef) String() string { return r.id.String() }

func (r CollectionRef) IsZero() bool { return r.id == uuid.Nil }

func (r CollectionRef) MarshalText() ([]byte, error) {
	return []byte(r.id.String()), nil
}

func (r *CollectionRef) UnmarshalText(b []byte) error {
	parsed, err := ParseCollectionRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// CollectionSetting is the workout timing shared by an exercise collection.
type CollectionSetting struct {
	ID             uuid.UUID `json:"id"`
	Rounds         int       `json:"rounds"`
	PerRound       int       `json:"perRound"`
	WarmUp         bool      `json:"warmUp"`
	Shuffle        bool      `json:"shuffle"`
	ExerciseTime   int       `json:"exerciseTime"`
	TransitionTime int       `json:"transitionTime"`
	RestTime       int       `json:"restTime"`
	RestFrequency  int       `json:"restFrequency"`
}

func newDaySetting(perRound int) CollectionSetting {
	return CollectionSetting{
		ID:             uuid.New(),
		Rounds:         3,
		PerRound:       perRound,
		WarmUp:         true,
		Shuffle:        true,
		ExerciseTime:   45,
		TransitionTime: 10,
		RestTime:       10,
		RestFrequency:  10,
	}
}

type ExerciseCollection struct {
	ListID    CollectionRef `json:"listId"`
	PlanID    int64         `json:"planId"`
	Date      time.Time     `json:"date"`
	SettingID uuid.UUID     `json:"settingId"`
}

type MealCollection struct {
	ListID    CollectionRef `json:"listId"`
	PlanID    int64         `json:"planId"`
	Date      time.Time     `json:"date"`
	MealRatio float64       `json:"mealRatio"`
}

// ItemReference links a catalog exercise or meal to a collection.
type ItemReference struct {
	ID     uuid.UUID     `json:"id"`
	ItemID string        `json:"itemId"`
	ListID CollectionRef `json:"listId"`
}

func newReference(itemID string, listID CollectionRef) ItemReference {
	return ItemReference{ID: uuid.New(), ItemID: itemID, ListID: listID}
}

// Batch accumulates every record produced by one materialization run.
type Batch struct {
	Settings            []CollectionSetting
	ExerciseCollections []ExerciseCollection
	PlanExercises       []ItemReference
	MealCollections     []MealCollection
	PlanMeals           []ItemReference
}

func (b *Batch) Len() int {
	return len(b.Settings) + len(b.ExerciseCollections) + len(b.PlanExercises) +
		len(b.MealCollections) + len(b.PlanMeals)
}

type InsertOptions struct {
	// TolerateDuplicates skips rows whose key already exists instead of
	// failing the batch. The skipped count is reported as *DuplicateKeyError.
	TolerateDuplicates bool
}

type DuplicateKeyError struct {
	Skipped int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("skipped %d duplicate rows", e.Skipped)
}

// LockKey scopes an extend lock to a plan and its owner.
type LockKey struct {
	PlanID int64
	UserID string
}

func (k LockKey) String() string {
	return fmt.Sprintf("plan:%d:user:%s", k.PlanID, k.UserID)
}

// ExerciseDay is one scheduled exercise collection with its items.
type ExerciseDay struct {
	ListID      CollectionRef     `json:"listId"`
	Date        time.Time         `json:"date"`
	Setting     CollectionSetting `json:"setting"`
	ExerciseIDs []string          `json:"exerciseIds"`
}

// MealDay is one scheduled meal collection with its items.
type MealDay struct {
	ListID    CollectionRef `json:"listId"`
	Date      time.Time     `json:"date"`
	MealRatio float64       `json:"mealRatio"`
	MealIDs   []string      `json:"mealIds"`
}

type Schedule struct {
	Plan      *Plan         `json:"plan"`
	Exercises []ExerciseDay `json:"exercises"`
	Meals     []MealDay     `json:"meals"`
}

// PlanStore persists plans, their collections and the extend lock fields.
// Finders return nil, nil when nothing matches.
type PlanStore interface {
	CreatePlan(ctx context.Context, d PlanDraft) (*Plan, error)
	DeletePlanCascade(ctx context.Context, planID int64) error
	FindLatestPlan(ctx context.Context, userID string) (*Plan, error)
	FindPlanByRecordID(ctx context.Context, id uuid.UUID, userID string) (*Plan, error)
	FindPlanByPlanID(ctx context.Context, planID int64, userID string) (*Plan, error)
	FindLastScheduledDate(ctx context.Context, planID int64) (*time.Time, error)
	InsertBatch(ctx context.Context, b Batch, opts InsertOptions) error
	ListMealGroups(ctx context.Context, planID int64) (map[CollectionRef][]string, error)
	ListScheduledItemIDs(ctx context.Context, planID int64) (exerciseIDs, mealIDs []string, err error)
	ListSchedule(ctx context.Context, planID int64) (*Schedule, error)
	CompareAndSetLock(ctx context.Context, planID int64, userID string, now, expiresAt time.Time) (bool, error)
	ClearLock(ctx context.Context, planID int64, userID string, expiresAt time.Time) (bool, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*user.Profile, error)
	SetCurrentPlanID(ctx context.Context, userID string, planID int64) error
}

// Locker guards ExtendPlan. TryAcquire never waits: it returns a nil Lease
// when another holder owns an unexpired lock.
type Locker interface {
	TryAcquire(ctx context.Context, key LockKey, ttl time.Duration) (Lease, error)
}

// Lease is one successful acquisition. Release frees the lock only while this
// acquisition still owns it; a lock taken over after expiry is left alone.
type Lease interface {
	Release(ctx context.Context) error
}

// Execution describes one finished engine operation.
type Execution struct {
	Operation     string
	UserID        string
	PlanID        int64
	Days          int
	DuplicateDays int
	Outcome       string
	Latency       time.Duration
}

// Outcomes reported on Execution.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

type Recorder interface {
	RecordExecution(ctx context.Context, e Execution)
}

type nopRecorder struct{}

func (nopRecorder) RecordExecution(context.Context, Execution) {}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
