package dto

import (
	"io"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

// CertificateOutcome describes the result of an issuance attempt.
type CertificateOutcome struct {
	Eligible bool `json:"eligible"`
	// Issued is true only when this call created the certificate.
	Issued      bool                      `json:"issued"`
	Reason      string                    `json:"reason,omitempty"`
	Certificate *models.CertificateDetail `json:"certificate,omitempty"`
}

// RevokeCertificateRequest carries an optional revocation reason.
type RevokeCertificateRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// CertificateVerification is the public view of a certificate.
type CertificateVerification struct {
	Code        string                   `json:"code"`
	Valid       bool                     `json:"valid"`
	Status      models.CertificateStatus `json:"status"`
	LearnerName string                   `json:"learner_name"`
	CourseTitle string                   `json:"course_title"`
	IssuedAt    string                   `json:"issued_at"`
}

// CertificateDownload resolves a signed token to a stored artifact.
type CertificateDownload struct {
	CertificateID string
	FilePath      string
	FileName      string
	Size          int64
	Content       io.ReadCloser
}
