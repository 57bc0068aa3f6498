package models

import "time"

// ActivityKind names the call site that touched a learner's streak.
type ActivityKind string

const (
	ActivityLogin            ActivityKind = "login"
	ActivityLessonCompletion ActivityKind = "lesson_completion"
)

// UserStats holds the per-user daily activity streak.
type UserStats struct {
	UserID         string     `db:"user_id" json:"user_id"`
	CurrentStreak  int        `db:"current_streak" json:"current_streak"`
	LongestStreak  int        `db:"longest_streak" json:"longest_streak"`
	LastActivityAt *time.Time `db:"last_activity_at" json:"last_activity_at,omitempty"`
}
