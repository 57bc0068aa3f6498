package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

var enrollmentRowColumns = []string{"id", "user_id", "course_id", "status", "progress", "rejection_reason", "enrolled_at", "decided_at", "decided_by", "completed_at", "last_accessed_at"}

func TestEnrollmentRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "enrollments_open_uniq"})

	err := repo.Create(context.Background(), &models.Enrollment{UserID: "u-1", CourseID: "c-1"})
	assert.ErrorIs(t, err, ErrOpenEnrollmentExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaultsToPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), "u-1", "c-1", models.EnrollmentStatusPending, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{UserID: "u-1", CourseID: "c-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsOpen(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM enrollments WHERE user_id = \\$1 AND course_id = \\$2 AND status IN").
		WithArgs("u-1", "c-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("u-1", "c-2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsOpen(context.Background(), "u-1", "c-1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsOpen(context.Background(), "u-1", "c-2")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(append(enrollmentRowColumns, "learner_name", "learner_email", "course_title")).
		AddRow("e-1", "u-1", "c-1", "pending", 0, nil, now, nil, nil, nil, nil, "Ana", "ana@example.org", "Foundations")
	mock.ExpectQuery("WHERE e.course_id = \\$1 AND e.status = \\$2 ORDER BY u.full_name ASC LIMIT 10 OFFSET 10").
		WithArgs("c-1", models.EnrollmentStatusPending).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments e").
		WithArgs("c-1", models.EnrollmentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	list, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		CourseID: "c-1", Status: models.EnrollmentStatusPending, Page: 2, PageSize: 10, SortBy: "learner_name", SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, "Foundations", list[0].CourseTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLockAndUpdateProgress(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("WHERE e.user_id = \\$1 AND e.course_id = \\$2 AND e.status IN \\('pending', 'approved'\\) FOR UPDATE").
		WithArgs("u-1", "c-1").
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).AddRow("e-1", "u-1", "c-1", "approved", 50, nil, now, now, "admin", nil, nil))
	mock.ExpectExec("UPDATE enrollments SET progress = \\$1, completed_at = \\$2, last_accessed_at = \\$3 WHERE id = \\$4").
		WithArgs(100, now, now, "e-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	enrollment, err := repo.FindOpenForUpdate(context.Background(), tx, "u-1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, enrollment.Status)
	require.NoError(t, repo.UpdateProgress(context.Background(), tx, enrollment.ID, models.EnrollmentProgressUpdate{Progress: 100, CompletedAt: &now, LastAccessedAt: &now}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusWrapsErrors(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE enrollments SET status").WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.UpdateStatus(context.Background(), tx, "e-1", models.EnrollmentStatusChange{Status: models.EnrollmentStatusApproved, DecidedBy: "admin", DecidedAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update enrollment status")
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
