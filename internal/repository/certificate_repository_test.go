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

func TestCertificateRepositoryInsertIssued(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery("ON CONFLICT \\(user_id, course_id\\) WHERE status = 'ISSUED' DO NOTHING").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cert-1"))

	cert := &models.Certificate{ID: "cert-1", UserID: "u-1", CourseID: "c-1", TemplateID: "t-1", Code: "ABC"}
	inserted, err := repo.InsertIssued(context.Background(), cert)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, models.CertificateStatusIssued, cert.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryInsertIssuedSuppressedByIndex(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery("INSERT INTO certificates").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	inserted, err := repo.InsertIssued(context.Background(), &models.Certificate{UserID: "u-1", CourseID: "c-1", TemplateID: "t-1", Code: "XYZ"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryHasRevoked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM certificates WHERE user_id = \\$1 AND course_id = \\$2 AND status = 'REVOKED'\\)").
		WithArgs("u-1", "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := repo.HasRevoked(context.Background(), "u-1", "c-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryRevokeOnlyIssued(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	at := time.Now().UTC()
	reason := "issued in error"
	mock.ExpectExec("UPDATE certificates SET status = 'REVOKED'.*WHERE id = \\$3 AND status = 'ISSUED'").
		WithArgs(at, &reason, "cert-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE certificates SET status = 'REVOKED'").
		WithArgs(at, nil, "cert-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Revoke(context.Background(), "cert-1", &reason, at)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Revoke(context.Background(), "cert-1", nil, at)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryFindDetailByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "template_id", "code", "status", "file_path", "issued_at", "revoked_at", "revoke_reason", "learner_name", "course_title"}).
		AddRow("cert-1", "u-1", "c-1", "t-1", "ABC", "ISSUED", "u-1/cert-1.pdf", now, nil, nil, "Ana", "Foundations")
	mock.ExpectQuery("WHERE ct.code = \\$1").WithArgs("ABC").WillReturnRows(rows)

	detail, err := repo.FindDetailByCode(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, "Ana", detail.LearnerName)
	require.NotNil(t, detail.FilePath)
	assert.Equal(t, "u-1/cert-1.pdf", *detail.FilePath)
	assert.NoError(t, mock.ExpectationsWereMet())
}
