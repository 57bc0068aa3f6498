package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries everything printed on a completion certificate.
type CertificateData struct {
	Title       string
	Body        string
	Signatory   string
	LearnerName string
	CourseTitle string
	Code        string
	IssuedAt    time.Time
}

// CertificatePDF renders completion certificates as single-page landscape PDFs.
type CertificatePDF struct{}

// NewCertificatePDF constructs the renderer.
func NewCertificatePDF() *CertificatePDF {
	return &CertificatePDF{}
}

// Render produces the PDF bytes for data.
func (r *CertificatePDF) Render(data CertificateData) ([]byte, error) {
	if strings.TrimSpace(data.LearnerName) == "" || strings.TrimSpace(data.CourseTitle) == "" {
		return nil, fmt.Errorf("certificate requires learner name and course title")
	}
	title := data.Title
	if title == "" {
		title = "Certificate of Completion"
	}
	issued := data.IssuedAt
	if issued.IsZero() {
		issued = time.Now().UTC()
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	w, h := pdf.GetPageSize()
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, w-20, h-20, "D")
	pdf.SetLineWidth(0.3)
	pdf.Rect(14, 14, w-28, h-28, "D")

	pdf.SetY(38)
	pdf.SetFont("Times", "B", 30)
	pdf.CellFormat(0, 14, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Times", "I", 14)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Times", "B", 24)
	pdf.CellFormat(0, 12, tr(data.LearnerName), "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Times", "I", 14)
	pdf.CellFormat(0, 8, "has successfully completed the course", "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Times", "B", 18)
	pdf.CellFormat(0, 10, tr(data.CourseTitle), "", 1, "C", false, 0, "")

	if body := strings.TrimSpace(data.Body); body != "" {
		pdf.Ln(4)
		pdf.SetFont("Times", "", 12)
		pdf.SetX(40)
		pdf.MultiCell(w-80, 6, tr(body), "", "C", false)
	}

	pdf.SetY(h - 50)
	pdf.SetFont("Times", "", 12)
	pdf.CellFormat((w-40)/2, 6, "Issued "+issued.Format("January 2, 2006"), "", 0, "C", false, 0, "")
	if data.Signatory != "" {
		pdf.CellFormat((w-40)/2, 6, tr(data.Signatory), "T", 0, "C", false, 0, "")
	}
	pdf.Ln(12)
	pdf.SetFont("Courier", "", 9)
	pdf.CellFormat(0, 5, "Verification code: "+data.Code, "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
