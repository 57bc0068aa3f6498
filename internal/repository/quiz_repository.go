package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

// QuizRepository reads quiz questions and stores graded attempts.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// QuestionsByLesson returns the lesson's questions with their options attached.
func (r *QuizRepository) QuestionsByLesson(ctx context.Context, lessonID string) ([]models.Question, error) {
	const questionQuery = `SELECT id, lesson_id, type, prompt, points, correct_answer, position
        FROM questions WHERE lesson_id = $1 ORDER BY position ASC`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, questionQuery, lessonID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return questions, nil
	}

	ids := make([]string, len(questions))
	for i := range questions {
		ids[i] = questions[i].ID
	}
	const optionQuery = `SELECT id, question_id, label, is_correct
        FROM question_options WHERE question_id = ANY($1) ORDER BY position ASC`
	var options []models.QuestionOption
	if err := r.db.SelectContext(ctx, &options, optionQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list question options: %w", err)
	}

	index := make(map[string]int, len(questions))
	for i := range questions {
		index[questions[i].ID] = i
	}
	for _, opt := range options {
		if i, ok := index[opt.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, opt)
		}
	}
	return questions, nil
}

// CreateAttempt stores a graded attempt and its answers.
func (r *QuizRepository) CreateAttempt(ctx context.Context, tx *sqlx.Tx, attempt *models.QuizAttempt, answers []models.StudentAnswer) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.SubmittedAt.IsZero() {
		attempt.SubmittedAt = time.Now().UTC()
	}
	const attemptQuery = `INSERT INTO quiz_attempts (id, user_id, lesson_id, score, passed, submitted_at)
VALUES (:id, :user_id, :lesson_id, :score, :passed, :submitted_at)`
	if _, err := tx.NamedExecContext(ctx, attemptQuery, attempt); err != nil {
		return fmt.Errorf("insert quiz attempt: %w", err)
	}

	const answerQuery = `INSERT INTO student_answers (id, attempt_id, question_id, selected_option_ids, free_text, is_correct, points_awarded)
VALUES (:id, :attempt_id, :question_id, :selected_option_ids, :free_text, :is_correct, :points_awarded)`
	for i := range answers {
		answer := &answers[i]
		if answer.ID == "" {
			answer.ID = uuid.NewString()
		}
		answer.AttemptID = attempt.ID
		if _, err := tx.NamedExecContext(ctx, answerQuery, answer); err != nil {
			return fmt.Errorf("insert student answer: %w", err)
		}
	}
	return nil
}
