package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCertificatePDFRender(t *testing.T) {
	out, err := NewCertificatePDF().Render(CertificateData{
		Title:       "Certificate of Completion",
		Body:        "Awarded for finishing every lesson of the discipleship track.",
		Signatory:   "Pastor Ana Lima",
		LearnerName: "João Silva",
		CourseTitle: "Foundations of Faith",
		Code:        "C-0001",
		IssuedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestCertificatePDFRequiresNames(t *testing.T) {
	_, err := NewCertificatePDF().Render(CertificateData{CourseTitle: "Foundations"})
	require.Error(t, err)
}
