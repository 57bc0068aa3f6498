package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

// UserStatsRepository stores streak counters.
type UserStatsRepository struct {
	db *sqlx.DB
}

// NewUserStatsRepository constructs the repository.
func NewUserStatsRepository(db *sqlx.DB) *UserStatsRepository {
	return &UserStatsRepository{db: db}
}

// Get returns a user's stats.
func (r *UserStatsRepository) Get(ctx context.Context, userID string) (*models.UserStats, error) {
	const query = `SELECT user_id, current_streak, longest_streak, last_activity_at FROM user_stats WHERE user_id = $1`
	var stats models.UserStats
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetForUpdate locks the stats row so concurrent touches serialize.
func (r *UserStatsRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, userID string) (*models.UserStats, error) {
	const query = `SELECT user_id, current_streak, longest_streak, last_activity_at FROM user_stats WHERE user_id = $1 FOR UPDATE`
	var stats models.UserStats
	if err := tx.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Upsert writes the stats row.
func (r *UserStatsRepository) Upsert(ctx context.Context, tx *sqlx.Tx, stats *models.UserStats) error {
	const query = `INSERT INTO user_stats (user_id, current_streak, longest_streak, last_activity_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
    current_streak = EXCLUDED.current_streak,
    longest_streak = EXCLUDED.longest_streak,
    last_activity_at = EXCLUDED.last_activity_at`
	if _, err := tx.ExecContext(ctx, query, stats.UserID, stats.CurrentStreak, stats.LongestStreak, stats.LastActivityAt); err != nil {
		return fmt.Errorf("upsert user stats: %w", err)
	}
	return nil
}
