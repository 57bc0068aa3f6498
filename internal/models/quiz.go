package models

import (
	"time"

	"github.com/lib/pq"
)

// QuestionType distinguishes auto-gradable questions from free text.
type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionText           QuestionType = "TEXT"
)

// Objective reports whether the question can be graded automatically.
func (t QuestionType) Objective() bool {
	return t == QuestionSingleChoice || t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// Question belongs to a quiz lesson.
type Question struct {
	ID            string           `db:"id" json:"id"`
	LessonID      string           `db:"lesson_id" json:"lesson_id"`
	Type          QuestionType     `db:"type" json:"type"`
	Prompt        string           `db:"prompt" json:"prompt"`
	Points        int              `db:"points" json:"points"`
	CorrectAnswer *string          `db:"correct_answer" json:"-"`
	Position      int              `db:"position" json:"position"`
	Options       []QuestionOption `db:"-" json:"options,omitempty"`
}

// QuestionOption is a selectable answer of an objective question.
type QuestionOption struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Label      string `db:"label" json:"label"`
	IsCorrect  bool   `db:"is_correct" json:"-"`
}

// QuizAttempt records one graded submission.
type QuizAttempt struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	LessonID    string    `db:"lesson_id" json:"lesson_id"`
	Score       float64   `db:"score" json:"score"`
	Passed      bool      `db:"passed" json:"passed"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// StudentAnswer is a learner's answer to one question within an attempt.
type StudentAnswer struct {
	ID                string         `db:"id" json:"id"`
	AttemptID         string         `db:"attempt_id" json:"attempt_id"`
	QuestionID        string         `db:"question_id" json:"question_id"`
	SelectedOptionIDs pq.StringArray `db:"selected_option_ids" json:"selected_option_ids,omitempty"`
	FreeText          *string        `db:"free_text" json:"free_text,omitempty"`
	IsCorrect         *bool          `db:"is_correct" json:"is_correct,omitempty"`
	PointsAwarded     int            `db:"points_awarded" json:"points_awarded"`
}
