package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ministry-learning-api/internal/dto"
	"github.com/noah-isme/ministry-learning-api/internal/models"
	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
	"github.com/noah-isme/ministry-learning-api/pkg/export"
	"github.com/noah-isme/ministry-learning-api/pkg/jobs"
)

// CertificateRetryJob is the job type enqueued when issuance failed after a completion.
const CertificateRetryJob = "certificate.issue"

type certificateRepository interface {
	FindIssued(ctx context.Context, userID, courseID string) (*models.Certificate, error)
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	FindDetailByCode(ctx context.Context, code string) (*models.CertificateDetail, error)
	ListByUser(ctx context.Context, userID string) ([]models.CertificateDetail, error)
	HasRevoked(ctx context.Context, userID, courseID string) (bool, error)
	InsertIssued(ctx context.Context, cert *models.Certificate) (bool, error)
	Revoke(ctx context.Context, id string, reason *string, at time.Time) (bool, error)
}

type certificateCourseReader interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	FindTemplate(ctx context.Context, id string) (*models.CertificateTemplate, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type certificateRenderer interface {
	Render(data export.CertificateData) ([]byte, error)
}

type artifactStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(certificateID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (string, string, time.Time, error)
}

// CertificateConfig holds the public download prefix for signed links.
type CertificateConfig struct {
	DownloadBaseURL string
}

// CertificateService issues completion certificates once per learner and course.
type CertificateService struct {
	repo        certificateRepository
	enrollments learnerEnrollmentReader
	courses     certificateCourseReader
	users       userFinder
	renderer    certificateRenderer
	storage     artifactStore
	signer      downloadSigner
	config      CertificateConfig
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(repo certificateRepository, enrollments learnerEnrollmentReader, courses certificateCourseReader, users userFinder, renderer certificateRenderer, storage artifactStore, signer downloadSigner, config CertificateConfig, metrics *MetricsService, logger *zap.Logger) *CertificateService {
	if renderer == nil {
		renderer = export.NewCertificatePDF()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.DownloadBaseURL = strings.TrimRight(config.DownloadBaseURL, "/")
	return &CertificateService{
		repo:        repo,
		enrollments: enrollments,
		courses:     courses,
		users:       users,
		renderer:    renderer,
		storage:     storage,
		signer:      signer,
		config:      config,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// IssueIfEligible issues the certificate for a completed course. Repeated calls return the
// certificate already issued. A revoked pair stays ineligible until an admin reissues it.
func (s *CertificateService) IssueIfEligible(ctx context.Context, userID, courseID string) (*dto.CertificateOutcome, error) {
	return s.issue(ctx, userID, courseID, false)
}

// Reissue replaces a revoked certificate with a fresh one carrying a new code.
func (s *CertificateService) Reissue(ctx context.Context, id, actorID string) (*dto.CertificateOutcome, error) {
	revoked, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if revoked.Status != models.CertificateStatusRevoked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only revoked certificates can be reissued")
	}

	outcome, err := s.issue(ctx, revoked.UserID, revoked.CourseID, true)
	if err != nil {
		return nil, err
	}
	if outcome.Issued {
		s.logger.Info("certificate reissued",
			zap.String("revoked_id", id),
			zap.String("certificate_id", outcome.Certificate.ID),
			zap.String("actor_id", actorID),
		)
	}
	return outcome, nil
}

func (s *CertificateService) issue(ctx context.Context, userID, courseID string, reissue bool) (*dto.CertificateOutcome, error) {
	enrollment, err := s.enrollments.FindLatestForLearner(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.ineligible("not enrolled in course"), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusApproved {
		return s.ineligible("enrollment is not approved"), nil
	}
	if enrollment.Progress < 100 {
		return s.ineligible("course not completed"), nil
	}

	course, err := s.courses.FindCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.HasCertificate() {
		return s.ineligible("course does not award a certificate"), nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	existing, err := s.findIssued(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.metrics.RecordCertificate("existing")
		return &dto.CertificateOutcome{Eligible: true, Certificate: s.detail(existing, user.FullName, course.Title)}, nil
	}
	if !reissue {
		revoked, err := s.repo.HasRevoked(ctx, userID, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check revoked certificate")
		}
		if revoked {
			return s.ineligible("certificate revoked"), nil
		}
	}

	tpl, err := s.courses.FindTemplate(ctx, *course.CertificateTemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate template")
	}

	cert := &models.Certificate{
		ID:         uuid.NewString(),
		UserID:     userID,
		CourseID:   courseID,
		TemplateID: tpl.ID,
		Code:       newCertificateCode(),
		IssuedAt:   s.now().UTC(),
	}

	artifact, err := s.renderer.Render(export.CertificateData{
		Title:       tpl.Title,
		Body:        tpl.Body,
		Signatory:   tpl.Signatory,
		LearnerName: user.FullName,
		CourseTitle: course.Title,
		Code:        cert.Code,
		IssuedAt:    cert.IssuedAt,
	})
	if err != nil {
		s.metrics.RecordCertificate("failed")
		return nil, appErrors.Wrap(err, appErrors.ErrCertificateGenerationFailed.Code, appErrors.ErrCertificateGenerationFailed.Status, "failed to render certificate")
	}
	filePath, err := s.storage.Save(path.Join(userID, cert.ID+".pdf"), artifact)
	if err != nil {
		s.metrics.RecordCertificate("failed")
		return nil, appErrors.Wrap(err, appErrors.ErrCertificateGenerationFailed.Code, appErrors.ErrCertificateGenerationFailed.Status, "failed to store certificate")
	}
	cert.FilePath = &filePath

	inserted, err := s.repo.InsertIssued(ctx, cert)
	if err != nil {
		s.discardArtifact(filePath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save certificate")
	}
	if !inserted {
		// a concurrent request issued first; keep theirs
		s.discardArtifact(filePath)
		winner, err := s.findIssued(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "certificate issuance conflicted, retry")
		}
		s.metrics.RecordCertificate("existing")
		return &dto.CertificateOutcome{Eligible: true, Certificate: s.detail(winner, user.FullName, course.Title)}, nil
	}

	s.metrics.RecordCertificate("issued")
	s.logger.Info("certificate issued",
		zap.String("certificate_id", cert.ID),
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
		zap.String("code", cert.Code),
	)
	return &dto.CertificateOutcome{Eligible: true, Issued: true, Certificate: s.detail(cert, user.FullName, course.Title)}, nil
}

// HandleRetryJob re-runs issuance for a queued job. Returning an error asks the queue to retry.
func (s *CertificateService) HandleRetryJob(ctx context.Context, job jobs.Job) error {
	userID, courseID := job.Payload["user_id"], job.Payload["course_id"]
	if userID == "" || courseID == "" {
		s.logger.Error("malformed certificate retry job", zap.String("job_id", job.ID))
		return nil
	}
	outcome, err := s.IssueIfEligible(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if !outcome.Eligible {
		s.logger.Info("certificate retry no longer eligible", zap.String("job_id", job.ID), zap.String("reason", outcome.Reason))
	}
	return nil
}

// ListForUser returns the learner's certificates with download links for valid ones.
func (s *CertificateService) ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	certs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	for i := range certs {
		if certs[i].Status == models.CertificateStatusIssued {
			certs[i].DownloadURL = s.downloadURL(&certs[i].Certificate)
		}
	}
	return certs, nil
}

// Revoke invalidates an issued certificate. Completion state is not changed.
func (s *CertificateService) Revoke(ctx context.Context, id string, req dto.RevokeCertificateRequest, actorID string) (*models.Certificate, error) {
	cert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert.Status == models.CertificateStatusRevoked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate already revoked")
	}

	at := s.now().UTC()
	reason := normalizeReason(req.Reason)
	changed, err := s.repo.Revoke(ctx, id, reason, at)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke certificate")
	}
	if !changed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate already revoked")
	}

	cert.Status = models.CertificateStatusRevoked
	cert.RevokedAt = &at
	cert.RevokeReason = reason
	s.metrics.RecordCertificate("revoked")
	s.logger.Info("certificate revoked", zap.String("certificate_id", id), zap.String("actor_id", actorID))
	return cert, nil
}

// Verify looks up a certificate by its public code.
func (s *CertificateService) Verify(ctx context.Context, code string) (*dto.CertificateVerification, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	detail, err := s.repo.FindDetailByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify certificate")
	}
	return &dto.CertificateVerification{
		Code:        detail.Code,
		Valid:       detail.Status == models.CertificateStatusIssued,
		Status:      detail.Status,
		LearnerName: detail.LearnerName,
		CourseTitle: detail.CourseTitle,
		IssuedAt:    detail.IssuedAt.UTC().Format(time.RFC3339),
	}, nil
}

// ResolveDownload validates a signed token and opens the artifact it references.
// The caller closes Content.
func (s *CertificateService) ResolveDownload(ctx context.Context, token string) (*dto.CertificateDownload, error) {
	certID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	cert, err := s.repo.FindByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert.Status != models.CertificateStatusIssued {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "certificate has been revoked")
	}
	if cert.FilePath == nil || *cert.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate file not found")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "certificate file not found")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read certificate file")
	}
	return &dto.CertificateDownload{
		CertificateID: cert.ID,
		FilePath:      relPath,
		FileName:      fmt.Sprintf("certificate-%s.pdf", strings.ToLower(cert.Code)),
		Size:          info.Size(),
		Content:       file,
	}, nil
}

func (s *CertificateService) findIssued(ctx context.Context, userID, courseID string) (*models.Certificate, error) {
	cert, err := s.repo.FindIssued(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return cert, nil
}

func (s *CertificateService) ineligible(reason string) *dto.CertificateOutcome {
	s.metrics.RecordCertificate("ineligible")
	return &dto.CertificateOutcome{Eligible: false, Reason: reason}
}

func (s *CertificateService) detail(cert *models.Certificate, learnerName, courseTitle string) *models.CertificateDetail {
	return &models.CertificateDetail{
		Certificate: *cert,
		LearnerName: learnerName,
		CourseTitle: courseTitle,
		DownloadURL: s.downloadURL(cert),
	}
}

func (s *CertificateService) downloadURL(cert *models.Certificate) string {
	if cert == nil || cert.FilePath == nil || s.signer == nil {
		return ""
	}
	token, _, err := s.signer.Generate(cert.ID, *cert.FilePath)
	if err != nil {
		s.logger.Warn("failed to sign certificate link", zap.String("certificate_id", cert.ID), zap.Error(err))
		return ""
	}
	return s.config.DownloadBaseURL + "/" + token
}

func (s *CertificateService) discardArtifact(filePath string) {
	if err := s.storage.Delete(filePath); err != nil {
		s.logger.Warn("failed to delete certificate artifact", zap.String("path", filePath), zap.Error(err))
	}
}

func newCertificateCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:12])
}
