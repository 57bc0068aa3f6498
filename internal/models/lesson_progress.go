package models

import "time"

// LessonProgress is a learner's completion record for one lesson.
type LessonProgress struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	LessonID    string     `db:"lesson_id" json:"lesson_id"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
	WatchedAt   *time.Time `db:"watched_at" json:"watched_at,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ProgressCount is the authoritative completed/total tally for a course.
type ProgressCount struct {
	Completed int `db:"completed"`
	Total     int `db:"total"`
}

// Percent returns round(100 * completed / total), 0 for an empty course.
func (c ProgressCount) Percent() int {
	if c.Total <= 0 {
		return 0
	}
	completed := c.Completed
	if completed > c.Total {
		completed = c.Total
	}
	// integer half-up rounding avoids float drift at .5 boundaries
	return (200*completed + c.Total) / (2 * c.Total)
}
