package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

const progressCountQuery = `SELECT COUNT(l.id) AS total,
        COUNT(lp.id) FILTER (WHERE lp.is_completed) AS completed
        FROM lessons l
        JOIN modules m ON m.id = l.module_id
        LEFT JOIN lesson_progress lp ON lp.lesson_id = l.id AND lp.user_id = $1
        WHERE m.course_id = $2`

// LessonProgressRepository persists per-lesson completion.
type LessonProgressRepository struct {
	db *sqlx.DB
}

// NewLessonProgressRepository constructs the repository.
func NewLessonProgressRepository(db *sqlx.DB) *LessonProgressRepository {
	return &LessonProgressRepository{db: db}
}

// Upsert records the completion flag for (user, lesson). watched_at is only overwritten
// when a new value is supplied.
func (r *LessonProgressRepository) Upsert(ctx context.Context, tx *sqlx.Tx, progress *models.LessonProgress) error {
	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}
	if progress.UpdatedAt.IsZero() {
		progress.UpdatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lesson_progress (id, user_id, lesson_id, is_completed, watched_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, lesson_id) DO UPDATE SET
    is_completed = EXCLUDED.is_completed,
    watched_at = COALESCE(EXCLUDED.watched_at, lesson_progress.watched_at),
    updated_at = EXCLUDED.updated_at`
	if _, err := tx.ExecContext(ctx, query, progress.ID, progress.UserID, progress.LessonID, progress.IsCompleted, progress.WatchedAt, progress.UpdatedAt); err != nil {
		return fmt.Errorf("upsert lesson progress: %w", err)
	}
	return nil
}

// CountForCourse tallies completed and total lessons inside the writing transaction.
func (r *LessonProgressRepository) CountForCourse(ctx context.Context, tx *sqlx.Tx, userID, courseID string) (models.ProgressCount, error) {
	var count models.ProgressCount
	if err := tx.GetContext(ctx, &count, progressCountQuery, userID, courseID); err != nil {
		return models.ProgressCount{}, fmt.Errorf("count lesson progress: %w", err)
	}
	return count, nil
}

// ListForCourse returns the learner's progress rows for lessons of a course.
func (r *LessonProgressRepository) ListForCourse(ctx context.Context, userID, courseID string) ([]models.LessonProgress, error) {
	const query = `SELECT lp.id, lp.user_id, lp.lesson_id, lp.is_completed, lp.watched_at, lp.updated_at
        FROM lesson_progress lp
        JOIN lessons l ON l.id = lp.lesson_id
        JOIN modules m ON m.id = l.module_id
        WHERE lp.user_id = $1 AND m.course_id = $2`
	var rows []models.LessonProgress
	if err := r.db.SelectContext(ctx, &rows, query, userID, courseID); err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	return rows, nil
}
