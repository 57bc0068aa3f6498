package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/ministry-learning-api/internal/dto"
	"github.com/noah-isme/ministry-learning-api/internal/models"
	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
	"github.com/noah-isme/ministry-learning-api/pkg/jobs"
)

const (
	outlineCacheKeyPrefix = "learning:outline:"
	lessonViewsKeyPrefix  = "learning:lesson_views:"
)

type progressEnrollmentRepository interface {
	FindLatestForLearner(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	FindForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error)
	FindOpenForUpdate(ctx context.Context, tx *sqlx.Tx, userID, courseID string) (*models.Enrollment, error)
	UpdateProgress(ctx context.Context, tx *sqlx.Tx, id string, update models.EnrollmentProgressUpdate) error
}

type lessonProgressRepository interface {
	Upsert(ctx context.Context, tx *sqlx.Tx, progress *models.LessonProgress) error
	CountForCourse(ctx context.Context, tx *sqlx.Tx, userID, courseID string) (models.ProgressCount, error)
	ListForCourse(ctx context.Context, userID, courseID string) ([]models.LessonProgress, error)
}

type outlineReader interface {
	FindLesson(ctx context.Context, id string) (*models.Lesson, error)
	Outline(ctx context.Context, courseID string) (*models.CourseOutline, error)
}

type certificateIssuer interface {
	IssueIfEligible(ctx context.Context, userID, courseID string) (*dto.CertificateOutcome, error)
}

type activityTracker interface {
	TouchActivity(ctx context.Context, userID string, kind models.ActivityKind) (*models.UserStats, error)
}

type quizGrader interface {
	GradeSubmission(ctx context.Context, userID string, lesson *models.Lesson, req dto.QuizSubmissionRequest) (*dto.GradeResult, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ProgressConfig tunes outline caching.
type ProgressConfig struct {
	OutlineTTL time.Duration
}

// ProgressService records lesson completion and keeps each enrollment's progress
// percentage equal to its completed lesson count over the course total.
type ProgressService struct {
	tx           txProvider
	enrollments  progressEnrollmentRepository
	progress     lessonProgressRepository
	courses      outlineReader
	certificates certificateIssuer
	streaks      activityTracker
	quizzes      quizGrader
	retries      jobEnqueuer
	cache        *CacheService
	config       ProgressConfig
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
}

// ProgressDeps groups ProgressService collaborators.
type ProgressDeps struct {
	Tx           txProvider
	Enrollments  progressEnrollmentRepository
	Progress     lessonProgressRepository
	Courses      outlineReader
	Certificates certificateIssuer
	Streaks      activityTracker
	Quizzes      quizGrader
	// Retries is optional; when set, failed certificate issuance is retried in the background.
	Retries   jobEnqueuer
	Cache     *CacheService
	Validator *validator.Validate
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// NewProgressService constructs ProgressService.
func NewProgressService(deps ProgressDeps, config ProgressConfig) *ProgressService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if config.OutlineTTL <= 0 {
		config.OutlineTTL = 15 * time.Minute
	}
	return &ProgressService{
		tx:           deps.Tx,
		enrollments:  deps.Enrollments,
		progress:     deps.Progress,
		courses:      deps.Courses,
		certificates: deps.Certificates,
		streaks:      deps.Streaks,
		quizzes:      deps.Quizzes,
		retries:      deps.Retries,
		cache:        deps.Cache,
		config:       config,
		validator:    deps.Validator,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		now:          time.Now,
	}
}

// SetLessonCompletion marks a lesson complete or incomplete for the learner and recomputes
// the enrollment's progress in the same transaction. Certificate issuance runs after commit
// and its failure never undoes the completion.
func (s *ProgressService) SetLessonCompletion(ctx context.Context, userID, lessonID string, req dto.SetLessonCompletionRequest) (*dto.CompletionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}
	lesson, err := s.findLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	outline, err := s.outline(ctx, lesson.CourseID)
	if err != nil {
		return nil, err
	}

	completed := *req.IsCompleted
	enrollment, progress, err := s.recordCompletion(ctx, userID, lesson, completed, req.WatchedAt)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLessonCompletion(completed)
	s.logger.Info("lesson completion recorded",
		zap.String("user_id", userID),
		zap.String("lesson_id", lesson.ID),
		zap.Bool("completed", completed),
		zap.Int("progress", progress),
	)

	result := &dto.CompletionResult{
		EnrollmentID:    enrollment.ID,
		CourseID:        lesson.CourseID,
		LessonID:        lesson.ID,
		IsCompleted:     completed,
		Progress:        progress,
		CourseCompleted: progress == 100,
		IsLastLesson:    outline.IsLast(lesson.ID),
	}
	if completed && !result.IsLastLesson {
		if next := outline.NextUnlocked(lesson.ID); next != nil {
			result.NextLesson = &dto.NextLesson{ID: next.ID, ModuleID: next.ModuleID, Title: next.Title}
		}
	}

	if completed {
		s.touchActivity(ctx, userID)
	}
	if progress == 100 {
		s.issueCertificate(ctx, userID, lesson.CourseID, result)
	}
	return result, nil
}

func (s *ProgressService) recordCompletion(ctx context.Context, userID string, lesson *models.Lesson, completed bool, watchedAt *time.Time) (enrollment *models.Enrollment, progress int, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment, err = s.enrollments.FindOpenForUpdate(ctx, tx, userID, lesson.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrEnrollmentNotApproved, "")
			return nil, 0, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock enrollment")
		return nil, 0, err
	}
	if enrollment.Status != models.EnrollmentStatusApproved {
		err = appErrors.Clone(appErrors.ErrEnrollmentNotApproved, "")
		return nil, 0, err
	}

	now := s.now().UTC()
	if watchedAt == nil && completed {
		watchedAt = &now
	}
	record := &models.LessonProgress{UserID: userID, LessonID: lesson.ID, IsCompleted: completed, WatchedAt: watchedAt, UpdatedAt: now}
	if err = s.progress.Upsert(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save lesson progress")
		return nil, 0, err
	}

	progress, err = s.applyProgress(ctx, tx, enrollment, &now)
	if err != nil {
		return nil, 0, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit lesson progress")
		return nil, 0, err
	}
	return enrollment, progress, nil
}

// applyProgress recounts the enrollment's lessons inside tx and stores the percentage.
// accessedAt nil keeps the previous last access time.
func (s *ProgressService) applyProgress(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment, accessedAt *time.Time) (int, error) {
	count, err := s.progress.CountForCourse(ctx, tx, enrollment.UserID, enrollment.CourseID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lesson progress")
	}
	progress := count.Percent()

	update := models.EnrollmentProgressUpdate{Progress: progress, LastAccessedAt: enrollment.LastAccessedAt}
	if accessedAt != nil {
		update.LastAccessedAt = accessedAt
	}
	if progress == 100 {
		update.CompletedAt = enrollment.CompletedAt
		if update.CompletedAt == nil {
			completedAt := s.now().UTC()
			update.CompletedAt = &completedAt
		}
	}
	if err := s.enrollments.UpdateProgress(ctx, tx, enrollment.ID, update); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment progress")
	}

	enrollment.Progress = update.Progress
	enrollment.CompletedAt = update.CompletedAt
	enrollment.LastAccessedAt = update.LastAccessedAt
	return progress, nil
}

// Recalculate recomputes an enrollment's progress from its lesson rows, e.g. after course
// content changed.
func (s *ProgressService) Recalculate(ctx context.Context, enrollmentID string) (enrollment *models.Enrollment, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment, err = s.enrollments.FindForUpdate(ctx, tx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock enrollment")
		return nil, err
	}
	previous := enrollment.Progress
	if _, err = s.applyProgress(ctx, tx, enrollment, nil); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit recalculation")
		return nil, err
	}

	// lessons may have changed under the cached outline
	_ = s.cache.Invalidate(ctx, outlineCacheKeyPrefix+enrollment.CourseID)

	s.logger.Info("enrollment progress recalculated",
		zap.String("enrollment_id", enrollmentID),
		zap.Int("previous", previous),
		zap.Int("progress", enrollment.Progress),
	)
	if enrollment.Progress == 100 && enrollment.Status == models.EnrollmentStatusApproved {
		s.issueCertificate(ctx, enrollment.UserID, enrollment.CourseID, nil)
	}
	return enrollment, nil
}

// CourseProgress returns the learner's enrollment with per-lesson completion.
func (s *ProgressService) CourseProgress(ctx context.Context, userID, courseID string) (*dto.CourseProgressView, error) {
	enrollment, err := s.enrollments.FindLatestForLearner(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	outline, err := s.outline(ctx, courseID)
	if err != nil {
		return nil, err
	}
	rows, err := s.progress.ListForCourse(ctx, userID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson progress")
	}
	byLesson := make(map[string]models.LessonProgress, len(rows))
	for _, row := range rows {
		byLesson[row.LessonID] = row
	}

	view := &dto.CourseProgressView{Enrollment: *enrollment, TotalLessons: outline.Total()}
	for _, module := range outline.Modules() {
		item := dto.ModuleProgress{ID: module.ID, Title: module.Title, Order: module.Order}
		for _, lesson := range module.Lessons {
			row := byLesson[lesson.ID]
			if row.IsCompleted {
				view.CompletedLessons++
			}
			item.Lessons = append(item.Lessons, dto.LessonProgressItem{Lesson: lesson, IsCompleted: row.IsCompleted, WatchedAt: row.WatchedAt})
		}
		view.Modules = append(view.Modules, item)
	}
	return view, nil
}

// RecordView bumps the lesson's view counter. Counter failures are logged, not returned.
func (s *ProgressService) RecordView(ctx context.Context, lessonID string) (*dto.LessonViewResult, error) {
	if _, err := s.findLesson(ctx, lessonID); err != nil {
		return nil, err
	}
	views, err := s.cache.Incr(ctx, lessonViewsKeyPrefix+lessonID, 0)
	if err != nil {
		s.logger.Warn("failed to record lesson view", zap.String("lesson_id", lessonID), zap.Error(err))
	}
	return &dto.LessonViewResult{LessonID: lessonID, Views: views}, nil
}

// SubmitQuiz grades a quiz lesson and completes it when the learner passed.
func (s *ProgressService) SubmitQuiz(ctx context.Context, userID, lessonID string, req dto.QuizSubmissionRequest) (*dto.QuizSubmissionResult, error) {
	lesson, err := s.findLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	grade, err := s.quizzes.GradeSubmission(ctx, userID, lesson, req)
	if err != nil {
		return nil, err
	}
	result := &dto.QuizSubmissionResult{Grade: *grade}
	if !grade.Passed {
		return result, nil
	}

	completed := true
	completion, err := s.SetLessonCompletion(ctx, userID, lessonID, dto.SetLessonCompletionRequest{IsCompleted: &completed})
	if err != nil {
		return nil, err
	}
	result.Completion = completion
	return result, nil
}

func (s *ProgressService) issueCertificate(ctx context.Context, userID, courseID string, result *dto.CompletionResult) {
	if s.certificates == nil {
		return
	}
	outcome, err := s.certificates.IssueIfEligible(ctx, userID, courseID)
	if err != nil {
		appErr := appErrors.FromError(err)
		s.logger.Error("certificate issuance failed", zap.String("user_id", userID), zap.String("course_id", courseID), zap.Error(err))
		if result != nil {
			result.CertificateError = appErr
		}
		s.enqueueRetry(userID, courseID)
		return
	}
	if result != nil && outcome.Eligible {
		result.Certificate = outcome
	}
}

func (s *ProgressService) enqueueRetry(userID, courseID string) {
	if s.retries == nil {
		return
	}
	job := jobs.Job{
		ID:      userID + ":" + courseID,
		Type:    CertificateRetryJob,
		Payload: map[string]string{"user_id": userID, "course_id": courseID},
	}
	if err := s.retries.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue certificate retry", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *ProgressService) touchActivity(ctx context.Context, userID string) {
	if s.streaks == nil {
		return
	}
	if _, err := s.streaks.TouchActivity(ctx, userID, models.ActivityLessonCompletion); err != nil {
		s.logger.Warn("failed to update streak", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *ProgressService) findLesson(ctx context.Context, lessonID string) (*models.Lesson, error) {
	lesson, err := s.courses.FindLesson(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// outline reads the course outline through the cache; published lessons do not change order.
func (s *ProgressService) outline(ctx context.Context, courseID string) (*models.CourseOutline, error) {
	key := outlineCacheKeyPrefix + courseID
	var cached models.CourseOutline
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	outline, err := s.courses.Outline(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course outline")
	}
	_ = s.cache.Set(ctx, key, outline, s.config.OutlineTTL)
	return outline, nil
}
