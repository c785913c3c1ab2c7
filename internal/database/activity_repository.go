package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lingofeed/pkg/models"
)

// ActivityRepository handles database operations for daily activity
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new repository instance
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// IncrementDailyActivity adds one interaction and xp to the user's day
func (r *ActivityRepository) IncrementDailyActivity(ctx context.Context, userID string, day time.Time, xp int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO daily_activity (user_id, day, interactions, xp) VALUES (?, ?, 1, ?)
		ON CONFLICT (user_id, day) DO UPDATE SET
			interactions = daily_activity.interactions + 1,
			xp = daily_activity.xp + excluded.xp`),
		userID, models.DayOf(day), xp)
	if err != nil {
		return fmt.Errorf("failed to increment daily activity: %w", err)
	}
	return nil
}

// GetDailyActivity returns the user's activity for the day containing day,
// or nil, nil if there was none
func (r *ActivityRepository) GetDailyActivity(ctx context.Context, userID string, day time.Time) (*models.DailyActivity, error) {
	var a models.DailyActivity
	err := r.db.GetContext(ctx, &a, r.db.Rebind(`
		SELECT user_id, day, interactions, xp FROM daily_activity WHERE user_id = ? AND day = ?`),
		userID, models.DayOf(day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily activity: %w", err)
	}
	return &a, nil
}

// GetActivityRange returns the user's activity between from and to
// inclusive, oldest first
func (r *ActivityRepository) GetActivityRange(ctx context.Context, userID string, from, to time.Time) ([]models.DailyActivity, error) {
	var out []models.DailyActivity
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT user_id, day, interactions, xp FROM daily_activity
		WHERE user_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC`),
		userID, models.DayOf(from), models.DayOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to get activity range: %w", err)
	}
	return out, nil
}
