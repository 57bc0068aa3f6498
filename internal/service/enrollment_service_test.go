package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ministry-learning-api/internal/dto"
	"github.com/noah-isme/ministry-learning-api/internal/models"
	"github.com/noah-isme/ministry-learning-api/internal/repository"
	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
)

type fakeEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	createErr   error
	listed      []models.EnrollmentFilter
}

func newFakeEnrollmentRepo(items ...models.Enrollment) *fakeEnrollmentRepo {
	repo := &fakeEnrollmentRepo{enrollments: make(map[string]models.Enrollment)}
	for _, item := range items {
		repo.enrollments[item.ID] = item
	}
	return repo
}

func (f *fakeEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	f.listed = append(f.listed, filter)
	var all []models.EnrollmentDetail
	for _, e := range f.enrollments {
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		all = append(all, models.EnrollmentDetail{Enrollment: e, LearnerName: "Learner " + e.UserID, CourseTitle: "Course " + e.CourseID})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	size := filter.PageSize
	start := (filter.Page - 1) * size
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (f *fakeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := f.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := f.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) FindLatestForLearner(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	var latest *models.Enrollment
	for _, e := range f.enrollments {
		if e.UserID != userID || e.CourseID != courseID {
			continue
		}
		e := e
		if latest == nil || (e.Status.Open() && !latest.Status.Open()) || e.EnrolledAt.After(latest.EnrolledAt) {
			latest = &e
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (f *fakeEnrollmentRepo) ExistsOpen(ctx context.Context, userID, courseID string) (bool, error) {
	for _, e := range f.enrollments {
		if e.UserID == userID && e.CourseID == courseID && e.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if f.createErr != nil {
		return f.createErr
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-new"
	}
	f.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (f *fakeEnrollmentRepo) FindForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeEnrollmentRepo) FindOpenForUpdate(ctx context.Context, tx *sqlx.Tx, userID, courseID string) (*models.Enrollment, error) {
	for _, e := range f.enrollments {
		if e.UserID == userID && e.CourseID == courseID && e.Status.Open() {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, change models.EnrollmentStatusChange) error {
	e := f.enrollments[id]
	e.Status = change.Status
	e.RejectionReason = change.RejectionReason
	e.DecidedBy = &change.DecidedBy
	e.DecidedAt = &change.DecidedAt
	f.enrollments[id] = e
	return nil
}

func (f *fakeEnrollmentRepo) UpdateProgress(ctx context.Context, tx *sqlx.Tx, id string, update models.EnrollmentProgressUpdate) error {
	e := f.enrollments[id]
	e.Progress = update.Progress
	e.CompletedAt = update.CompletedAt
	e.LastAccessedAt = update.LastAccessedAt
	f.enrollments[id] = e
	return nil
}

type fakeCourseRepo struct {
	courses   map[string]models.Course
	templates map[string]models.CertificateTemplate
	outlines  map[string]models.CourseOutline
}

func (f *fakeCourseRepo) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) FindTemplate(ctx context.Context, id string) (*models.CertificateTemplate, error) {
	if tpl, ok := f.templates[id]; ok {
		return &tpl, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) FindLesson(ctx context.Context, id string) (*models.Lesson, error) {
	for _, outline := range f.outlines {
		for _, lesson := range outline.Lessons {
			if lesson.ID == id {
				l := lesson
				return &l, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) Outline(ctx context.Context, courseID string) (*models.CourseOutline, error) {
	outline := f.outlines[courseID]
	outline.CourseID = courseID
	return &outline, nil
}

var adminActor = dto.EnrollmentActor{UserID: "admin-1", Role: string(models.RoleAdmin)}

func newEnrollmentServiceUnderTest(t *testing.T, repo *fakeEnrollmentRepo) (*EnrollmentService, *txProviderMock) {
	txMock, _ := newTxProviderMock(t)
	courses := &fakeCourseRepo{courses: map[string]models.Course{"c-1": {ID: "c-1", Title: "Foundations"}}}
	svc := NewEnrollmentService(txMock, repo, courses, nil, nil, nil, nil)
	return svc, txMock
}

func TestEnrollmentRequestCreatesPending(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	svc, _ := newEnrollmentServiceUnderTest(t, repo)

	enrollment, err := svc.Request(context.Background(), "u-1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Equal(t, 0, enrollment.Progress)
}

func TestEnrollmentRequestDuplicate(t *testing.T) {
	repo := newFakeEnrollmentRepo(models.Enrollment{ID: "e-1", UserID: "u-1", CourseID: "c-1", Status: models.EnrollmentStatusPending})
	svc, _ := newEnrollmentServiceUnderTest(t, repo)

	_, err := svc.Request(context.Background(), "u-1", "c-1")
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentRequestDuplicateFromIndexRace(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	repo.createErr = repository.ErrOpenEnrollmentExists
	svc, _ := newEnrollmentServiceUnderTest(t, repo)

	_, err := svc.Request(context.Background(), "u-1", "c-1")
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
}

func TestEnrollmentRequestAfterRejectionAllowed(t *testing.T) {
	repo := newFakeEnrollmentRepo(models.Enrollment{ID: "e-1", UserID: "u-1", CourseID: "c-1", Status: models.EnrollmentStatusRejected})
	svc, _ := newEnrollmentServiceUnderTest(t, repo)

	enrollment, err := svc.Request(context.Background(), "u-1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
}

func TestEnrollmentRequestUnknownCourse(t *testing.T) {
	svc, _ := newEnrollmentServiceUnderTest(t, newFakeEnrollmentRepo())
	_, err := svc.Request(context.Background(), "u-1", "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEnrollmentSetStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    models.EnrollmentStatus
		to      string
		role    models.UserRole
		wantErr *appErrors.Error
	}{
		{"leader approves pending", models.EnrollmentStatusPending, "approved", models.RoleLeader, nil},
		{"admin rejects pending", models.EnrollmentStatusPending, "rejected", models.RoleAdmin, nil},
		{"superadmin cancels approved", models.EnrollmentStatusApproved, "cancelled", models.RoleSuperAdmin, nil},
		{"approve rejected", models.EnrollmentStatusRejected, "approved", models.RoleAdmin, appErrors.ErrInvalidTransition},
		{"cancel pending", models.EnrollmentStatusPending, "cancelled", models.RoleAdmin, appErrors.ErrInvalidTransition},
		{"reject approved", models.EnrollmentStatusApproved, "rejected", models.RoleAdmin, appErrors.ErrInvalidTransition},
		{"leader cannot cancel", models.EnrollmentStatusApproved, "cancelled", models.RoleLeader, appErrors.ErrForbidden},
		{"learner cannot approve", models.EnrollmentStatusPending, "approved", models.RoleLearner, appErrors.ErrForbidden},
		{"back to pending", models.EnrollmentStatusApproved, "pending", models.RoleAdmin, appErrors.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeEnrollmentRepo(models.Enrollment{ID: "e-1", UserID: "u-1", CourseID: "c-1", Status: tc.from})
			svc, txMock := newEnrollmentServiceUnderTest(t, repo)
			if tc.wantErr == nil {
				txMock.mock.ExpectBegin()
				txMock.mock.ExpectCommit()
			} else if tc.wantErr == appErrors.ErrInvalidTransition {
				txMock.mock.ExpectBegin()
				txMock.mock.ExpectRollback()
			}

			detail, err := svc.SetStatus(context.Background(), "e-1", dto.UpdateEnrollmentStatusRequest{Status: tc.to}, dto.EnrollmentActor{UserID: "actor", Role: string(tc.role)})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.from, repo.enrollments["e-1"].Status)
			} else {
				require.NoError(t, err)
				assert.Equal(t, models.EnrollmentStatus(tc.to), detail.Status)
				require.NotNil(t, detail.DecidedBy)
				assert.Equal(t, "actor", *detail.DecidedBy)
			}
			assert.NoError(t, txMock.mock.ExpectationsWereMet())
		})
	}
}

func TestEnrollmentRejectStoresTrimmedReason(t *testing.T) {
	repo := newFakeEnrollmentRepo(models.Enrollment{ID: "e-1", UserID: "u-1", CourseID: "c-1", Status: models.EnrollmentStatusPending})
	svc, txMock := newEnrollmentServiceUnderTest(t, repo)
	txMock.mock.ExpectBegin()
	txMock.mock.ExpectCommit()

	reason := "  course is full this term  "
	detail, err := svc.SetStatus(context.Background(), "e-1", dto.UpdateEnrollmentStatusRequest{Status: "rejected", Reason: &reason}, adminActor)
	require.NoError(t, err)
	require.NotNil(t, detail.RejectionReason)
	assert.Equal(t, "course is full this term", *detail.RejectionReason)
}

func TestEnrollmentSetStatusUnknownEnrollment(t *testing.T) {
	svc, txMock := newEnrollmentServiceUnderTest(t, newFakeEnrollmentRepo())
	txMock.mock.ExpectBegin()
	txMock.mock.ExpectRollback()

	_, err := svc.SetStatus(context.Background(), "missing", dto.UpdateEnrollmentStatusRequest{Status: "approved"}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEnrollmentGetHidesOtherLearners(t *testing.T) {
	repo := newFakeEnrollmentRepo(models.Enrollment{ID: "e-1", UserID: "u-1", CourseID: "c-1", Status: models.EnrollmentStatusPending})
	svc, _ := newEnrollmentServiceUnderTest(t, repo)

	_, err := svc.Get(context.Background(), "e-1", dto.EnrollmentActor{UserID: "u-2", Role: string(models.RoleLearner)})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	detail, err := svc.Get(context.Background(), "e-1", dto.EnrollmentActor{UserID: "u-1", Role: string(models.RoleLearner)})
	require.NoError(t, err)
	assert.Equal(t, "e-1", detail.ID)
}

func TestEnrollmentExportRosterPages(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 130; i++ {
		id := fmt.Sprintf("e-%03d", i)
		repo.enrollments[id] = models.Enrollment{ID: id, UserID: "u", CourseID: "c-1", Status: models.EnrollmentStatusApproved, Progress: 50, EnrolledAt: now}
	}
	svc, _ := newEnrollmentServiceUnderTest(t, repo)

	payload, err := svc.ExportRoster(context.Background(), models.EnrollmentFilter{CourseID: "c-1"})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	assert.Len(t, lines, 131)
	assert.Equal(t, "enrollment_id,learner_name,learner_email,course_title,status,progress,enrolled_at,completed_at", lines[0])
	assert.Len(t, repo.listed, 2)
}
