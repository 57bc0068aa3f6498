package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

func TestQuizRepositoryQuestionsByLessonAttachesOptions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectQuery("FROM questions WHERE lesson_id = \\$1").
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "lesson_id", "type", "prompt", "points", "correct_answer", "position"}).
			AddRow("q-1", "l-1", "SINGLE_CHOICE", "Who?", 2, nil, 1).
			AddRow("q-2", "l-1", "TEXT", "Why?", 1, nil, 2))
	mock.ExpectQuery("FROM question_options WHERE question_id = ANY\\(\\$1\\)").
		WithArgs(pq.Array([]string{"q-1", "q-2"})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "question_id", "label", "is_correct"}).
			AddRow("o-1", "q-1", "Peter", true).
			AddRow("o-2", "q-1", "Paul", false))

	questions, err := repo.QuestionsByLesson(context.Background(), "l-1")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Len(t, questions[0].Options, 2)
	assert.Empty(t, questions[1].Options)
	assert.Equal(t, models.QuestionText, questions[1].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryCreateAttemptLinksAnswers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO quiz_attempts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_answers").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_answers").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	correct := true
	answers := []models.StudentAnswer{
		{QuestionID: "q-1", SelectedOptionIDs: pq.StringArray{"o-1"}, IsCorrect: &correct, PointsAwarded: 2},
		{QuestionID: "q-2"},
	}
	attempt := &models.QuizAttempt{UserID: "u-1", LessonID: "l-1", Score: 100, Passed: true}

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.CreateAttempt(context.Background(), tx, attempt, answers))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, attempt.ID)
	for _, answer := range answers {
		assert.Equal(t, attempt.ID, answer.AttemptID)
		assert.NotEmpty(t, answer.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
