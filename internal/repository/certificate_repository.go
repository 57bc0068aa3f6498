package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

const certificateColumns = `ct.id, ct.user_id, ct.course_id, ct.template_id, ct.code, ct.status, ct.file_path,
        ct.issued_at, ct.revoked_at, ct.revoke_reason`

// CertificateRepository persists issued certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// FindIssued returns the ISSUED certificate for a learner and course.
func (r *CertificateRepository) FindIssued(ctx context.Context, userID, courseID string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates ct
        WHERE ct.user_id = $1 AND ct.course_id = $2 AND ct.status = 'ISSUED'`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, userID, courseID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// HasRevoked reports whether the learner holds a revoked certificate for the course.
func (r *CertificateRepository) HasRevoked(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM certificates WHERE user_id = $1 AND course_id = $2 AND status = 'REVOKED')`
	var revoked bool
	if err := r.db.GetContext(ctx, &revoked, query, userID, courseID); err != nil {
		return false, fmt.Errorf("check revoked certificate: %w", err)
	}
	return revoked, nil
}

// FindByID returns a certificate by id.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates ct WHERE ct.id = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindDetailByCode looks up a certificate by its public verification code.
func (r *CertificateRepository) FindDetailByCode(ctx context.Context, code string) (*models.CertificateDetail, error) {
	query := `SELECT ` + certificateColumns + `, u.full_name AS learner_name, c.title AS course_title
        FROM certificates ct
        JOIN users u ON u.id = ct.user_id
        JOIN courses c ON c.id = ct.course_id
        WHERE ct.code = $1`
	var detail models.CertificateDetail
	if err := r.db.GetContext(ctx, &detail, query, code); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByUser returns every certificate of a learner, newest first.
func (r *CertificateRepository) ListByUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	query := `SELECT ` + certificateColumns + `, u.full_name AS learner_name, c.title AS course_title
        FROM certificates ct
        JOIN users u ON u.id = ct.user_id
        JOIN courses c ON c.id = ct.course_id
        WHERE ct.user_id = $1
        ORDER BY ct.issued_at DESC`
	var certs []models.CertificateDetail
	if err := r.db.SelectContext(ctx, &certs, query, userID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

// InsertIssued inserts an ISSUED certificate unless one already exists for the pair.
// It reports false when the partial unique index suppressed the insert.
func (r *CertificateRepository) InsertIssued(ctx context.Context, cert *models.Certificate) (bool, error) {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}
	cert.Status = models.CertificateStatusIssued
	const query = `INSERT INTO certificates (id, user_id, course_id, template_id, code, status, file_path, issued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id, course_id) WHERE status = 'ISSUED' DO NOTHING
RETURNING id`
	var id string
	err := r.db.GetContext(ctx, &id, query, cert.ID, cert.UserID, cert.CourseID, cert.TemplateID, cert.Code, cert.Status, cert.FilePath, cert.IssuedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert certificate: %w", err)
	}
	return true, nil
}

// Revoke marks an ISSUED certificate as revoked. It reports false when nothing changed.
func (r *CertificateRepository) Revoke(ctx context.Context, id string, reason *string, at time.Time) (bool, error) {
	const query = `UPDATE certificates SET status = 'REVOKED', revoked_at = $1, revoke_reason = $2 WHERE id = $3 AND status = 'ISSUED'`
	res, err := r.db.ExecContext(ctx, query, at, reason, id)
	if err != nil {
		return false, fmt.Errorf("revoke certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke certificate rows: %w", err)
	}
	return affected > 0, nil
}
