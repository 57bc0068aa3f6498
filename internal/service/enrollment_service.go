package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/ministry-learning-api/internal/dto"
	"github.com/noah-isme/ministry-learning-api/internal/models"
	"github.com/noah-isme/ministry-learning-api/internal/repository"
	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
	"github.com/noah-isme/ministry-learning-api/pkg/export"
)

const rosterPageSize = 100

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindLatestForLearner(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	ExistsOpen(ctx context.Context, userID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, change models.EnrollmentStatusChange) error
}

type courseFinder interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
}

type rosterRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// EnrollmentService runs the enrollment state machine.
type EnrollmentService struct {
	tx        txProvider
	repo      enrollmentRepository
	courses   courseFinder
	roster    rosterRenderer
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(tx txProvider, repo enrollmentRepository, courses courseFinder, roster rosterRenderer, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if roster == nil {
		roster = export.NewCSVExporter()
	}
	return &EnrollmentService{tx: tx, repo: repo, courses: courses, roster: roster, validator: validate, metrics: metrics, logger: logger, now: time.Now}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status filter")
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns a single enrollment. Learners may only read their own.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor dto.EnrollmentActor) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if models.UserRole(actor.Role) == models.RoleLearner && detail.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another learner")
	}
	return detail, nil
}

// FindForLearner returns the learner's current enrollment in a course.
func (s *EnrollmentService) FindForLearner(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindLatestForLearner(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Request creates a pending enrollment for the learner.
func (s *EnrollmentService) Request(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	if userID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user and course are required")
	}
	if _, err := s.courses.FindCourse(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	exists, err := s.repo.ExistsOpen(ctx, userID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
	}

	enrollment := &models.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		Status:     models.EnrollmentStatusPending,
		EnrolledAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		// lost a race against a concurrent request for the same pair
		if errors.Is(err, repository.ErrOpenEnrollmentExists) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment requested", zap.String("enrollment_id", enrollment.ID), zap.String("user_id", userID), zap.String("course_id", courseID))
	return enrollment, nil
}

// SetStatus applies a transition to an enrollment on behalf of actor.
func (s *EnrollmentService) SetStatus(ctx context.Context, id string, req dto.UpdateEnrollmentStatusRequest, actor dto.EnrollmentActor) (detail *models.EnrollmentDetail, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target := models.EnrollmentStatus(req.Status)
	if err := authorizeTransition(target, models.UserRole(actor.Role)); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := s.repo.FindForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock enrollment")
		return nil, err
	}
	if !current.Status.CanTransitionTo(target) {
		err = appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move enrollment from %s to %s", current.Status, target))
		return nil, err
	}

	change := models.EnrollmentStatusChange{
		Status:    target,
		DecidedBy: actor.UserID,
		DecidedAt: s.now().UTC(),
	}
	if target == models.EnrollmentStatusRejected {
		change.RejectionReason = normalizeReason(req.Reason)
	}
	if err = s.repo.UpdateStatus(ctx, tx, id, change); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit enrollment")
		return nil, err
	}

	s.metrics.RecordEnrollmentTransition(current.Status, target)
	s.logger.Info("enrollment status changed",
		zap.String("enrollment_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
		zap.String("actor_id", actor.UserID),
	)

	detail, loadErr := s.repo.FindDetailByID(ctx, id)
	if loadErr != nil {
		return nil, appErrors.Wrap(loadErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// ExportRoster renders every enrollment matching filter as CSV.
func (s *EnrollmentService) ExportRoster(ctx context.Context, filter models.EnrollmentFilter) ([]byte, error) {
	dataset := export.Dataset{Headers: []string{"enrollment_id", "learner_name", "learner_email", "course_title", "status", "progress", "enrolled_at", "completed_at"}}
	filter.PageSize = rosterPageSize
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
		}
		for _, item := range items {
			row := map[string]string{
				"enrollment_id": item.ID,
				"learner_name":  item.LearnerName,
				"learner_email": item.LearnerEmail,
				"course_title":  item.CourseTitle,
				"status":        string(item.Status),
				"progress":      strconv.Itoa(item.Progress),
				"enrolled_at":   item.EnrolledAt.UTC().Format(time.RFC3339),
			}
			if item.CompletedAt != nil {
				row["completed_at"] = item.CompletedAt.UTC().Format(time.RFC3339)
			}
			dataset.Rows = append(dataset.Rows, row)
		}
		if len(items) == 0 || page*rosterPageSize >= total {
			break
		}
	}

	payload, err := s.roster.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return payload, nil
}

func authorizeTransition(target models.EnrollmentStatus, role models.UserRole) error {
	switch target {
	case models.EnrollmentStatusApproved, models.EnrollmentStatusRejected:
		if role.IsAdmin() || role == models.RoleLeader {
			return nil
		}
	case models.EnrollmentStatusCancelled:
		if role.IsAdmin() {
			return nil
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported target status")
	}
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot set enrollment to %s", role, target))
}

func normalizeReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
