package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

func TestUserStatsLockThenUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserStatsRepository(db)

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM user_stats WHERE user_id = \\$1 FOR UPDATE").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "current_streak", "longest_streak", "last_activity_at"}).AddRow("u-1", 4, 9, yesterday))
	mock.ExpectExec("INSERT INTO user_stats").
		WithArgs("u-1", 5, 9, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	stats, err := repo.GetForUpdate(context.Background(), tx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.CurrentStreak)

	require.NoError(t, repo.Upsert(context.Background(), tx, &models.UserStats{UserID: "u-1", CurrentStreak: 5, LongestStreak: 9, LastActivityAt: &now}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
