package dto

import (
	"time"

	"github.com/noah-isme/ministry-learning-api/internal/models"
	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
)

// SetLessonCompletionRequest toggles completion of a lesson.
type SetLessonCompletionRequest struct {
	IsCompleted *bool      `json:"is_completed" validate:"required"`
	WatchedAt   *time.Time `json:"watched_at,omitempty"`
}

// NextLesson points the learner at the next unlocked lesson in course order.
type NextLesson struct {
	ID       string `json:"id"`
	ModuleID string `json:"module_id"`
	Title    string `json:"title"`
}

// CompletionResult is returned after a completion toggle.
type CompletionResult struct {
	EnrollmentID    string              `json:"enrollment_id"`
	CourseID        string              `json:"course_id"`
	LessonID        string              `json:"lesson_id"`
	IsCompleted     bool                `json:"is_completed"`
	Progress        int                 `json:"progress"`
	CourseCompleted bool                `json:"course_completed"`
	IsLastLesson    bool                `json:"is_last_lesson"`
	NextLesson      *NextLesson         `json:"next_lesson,omitempty"`
	Certificate     *CertificateOutcome `json:"certificate,omitempty"`
	// CertificateError reports a failed issuance; the completion itself is kept.
	CertificateError *appErrors.Error `json:"certificate_error,omitempty"`
}

// LessonProgressItem is one lesson of the course progress view.
type LessonProgressItem struct {
	models.Lesson
	IsCompleted bool       `json:"is_completed"`
	WatchedAt   *time.Time `json:"watched_at,omitempty"`
}

// ModuleProgress groups lesson items by module.
type ModuleProgress struct {
	ID      string               `json:"id"`
	Title   string               `json:"title"`
	Order   int                  `json:"order"`
	Lessons []LessonProgressItem `json:"lessons"`
}

// CourseProgressView is the learner's read model of a course.
type CourseProgressView struct {
	Enrollment       models.Enrollment `json:"enrollment"`
	CompletedLessons int               `json:"completed_lessons"`
	TotalLessons     int               `json:"total_lessons"`
	Modules          []ModuleProgress  `json:"modules"`
}

// LessonViewResult carries the updated view counter.
type LessonViewResult struct {
	LessonID string `json:"lesson_id"`
	Views    int64  `json:"views"`
}
