package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultAge is used when a profile has no date of birth.
	DefaultAge = 30

	dateLayout = "2006-01-02"
)

// Profile is the biometric and preference data that drives plan generation.
type Profile struct {
	UserID          string     `json:"userId"`
	Gender          string     `json:"gender"`
	DateOfBirth     *time.Time `json:"dateOfBirth,omitempty"`
	CurrentWeight   float64    `json:"currentWeight"`
	CurrentHeight   float64    `json:"currentHeight"`
	GoalWeight      float64    `json:"goalWeight"`
	ActiveFrequency string     `json:"activeFrequency"`
	Experience      string     `json:"experience"`
	Diet            string     `json:"diet"`
	MainGoal        string     `json:"mainGoal"`
	ProteinSources  []string   `json:"proteinSources"`
	Limits          []string   `json:"limits"`
	CurrentPlanID   *int64     `json:"currentPlanId,omitempty"`
}

// Age returns whole years between DateOfBirth and now using 365.25-day years.
func (p *Profile) Age(now time.Time) int {
	if p.DateOfBirth == nil || p.DateOfBirth.IsZero() {
		return DefaultAge
	}
	years := now.Sub(*p.DateOfBirth).Hours() / 24 / 365.25
	if years < 0 {
		return 0
	}
	return int(math.Floor(years))
}

// Repository is a database-backed profile store.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new profile Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// GetProfile returns the profile for userID, or nil if none exists.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var (
		p                Profile
		dob              sql.NullString
		proteins, limits string
		currentPlanID    sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, gender, date_of_birth, current_weight, current_height, goal_weight,
		       active_frequency, experience, diet, main_goal, protein_sources, limits, current_plan_id
		FROM users WHERE user_id = ?`, userID).Scan(
		&p.UserID, &p.Gender, &dob, &p.CurrentWeight, &p.CurrentHeight, &p.GoalWeight,
		&p.ActiveFrequency, &p.Experience, &p.Diet, &p.MainGoal, &proteins, &limits, &currentPlanID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}

	if dob.Valid && dob.String != "" {
		t, err := time.Parse(dateLayout, dob.String)
		if err != nil {
			return nil, fmt.Errorf("invalid date of birth for %s: %w", userID, err)
		}
		p.DateOfBirth = &t
	}
	if err := json.Unmarshal([]byte(proteins), &p.ProteinSources); err != nil {
		return nil, fmt.Errorf("invalid protein sources for %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(limits), &p.Limits); err != nil {
		return nil, fmt.Errorf("invalid limits for %s: %w", userID, err)
	}
	if currentPlanID.Valid {
		p.CurrentPlanID = &currentPlanID.Int64
	}
	return &p, nil
}

// SetCurrentPlanID stamps the user's active plan.
func (r *Repository) SetCurrentPlanID(ctx context.Context, userID string, planID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET current_plan_id = ?, updated_at = ? WHERE user_id = ?`,
		planID, r.now().UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("failed to set current plan for %s: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

// Import upserts profiles in a single transaction.
func (r *Repository) Import(ctx context.Context, profiles []Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin profile import: %w", err)
	}
	defer tx.Rollback()

	for _, p := range profiles {
		var dob any
		if p.DateOfBirth != nil {
			dob = p.DateOfBirth.UTC().Format(dateLayout)
		}
		proteins, _ := json.Marshal(nonNil(p.ProteinSources))
		limits, _ := json.Marshal(nonNil(p.Limits))

		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (user_id, gender, date_of_birth, current_weight, current_height, goal_weight,
			                   active_frequency, experience, diet, main_goal, protein_sources, limits, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
			    gender = excluded.gender, date_of_birth = excluded.date_of_birth,
			    current_weight = excluded.current_weight, current_height = excluded.current_height,
			    goal_weight = excluded.goal_weight, active_frequency = excluded.active_frequency,
			    experience = excluded.experience, diet = excluded.diet, main_goal = excluded.main_goal,
			    protein_sources = excluded.protein_sources, limits = excluded.limits,
			    updated_at = excluded.updated_at`,
			p.UserID, p.Gender, dob, p.CurrentWeight, p.CurrentHeight, p.GoalWeight,
			p.ActiveFrequency, p.Experience, p.Diet, p.MainGoal, string(proteins), string(limits),
			r.now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to import profile %s: %w", p.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile import: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
