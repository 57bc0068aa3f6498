package models

import "time"

// CertificateStatus tracks whether a certificate is still valid.
type CertificateStatus string

const (
	CertificateStatusIssued  CertificateStatus = "ISSUED"
	CertificateStatusRevoked CertificateStatus = "REVOKED"
)

// Certificate is issued once per (user, course) when the course is completed.
type Certificate struct {
	ID           string            `db:"id" json:"id"`
	UserID       string            `db:"user_id" json:"user_id"`
	CourseID     string            `db:"course_id" json:"course_id"`
	TemplateID   string            `db:"template_id" json:"template_id"`
	Code         string            `db:"code" json:"code"`
	Status       CertificateStatus `db:"status" json:"status"`
	FilePath     *string           `db:"file_path" json:"-"`
	IssuedAt     time.Time         `db:"issued_at" json:"issued_at"`
	RevokedAt    *time.Time        `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokeReason *string           `db:"revoke_reason" json:"revoke_reason,omitempty"`
}

// CertificateDetail joins learner and course names for display and verification.
type CertificateDetail struct {
	Certificate
	LearnerName string `db:"learner_name" json:"learner_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
	DownloadURL string `db:"-" json:"download_url,omitempty"`
}
