package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/ministry-learning-api/internal/dto"
	"github.com/noah-isme/ministry-learning-api/internal/models"
	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
)

// DefaultPassThreshold is the score a quiz needs when none is configured.
const DefaultPassThreshold = 70.0

type quizRepository interface {
	QuestionsByLesson(ctx context.Context, lessonID string) ([]models.Question, error)
	CreateAttempt(ctx context.Context, tx *sqlx.Tx, attempt *models.QuizAttempt, answers []models.StudentAnswer) error
}

type learnerEnrollmentReader interface {
	FindLatestForLearner(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
}

// QuizService auto-grades objective quiz submissions. It records attempts but never
// touches lesson progress.
type QuizService struct {
	tx          txProvider
	repo        quizRepository
	enrollments learnerEnrollmentReader
	threshold   float64
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewQuizService constructs QuizService.
func NewQuizService(tx txProvider, repo quizRepository, enrollments learnerEnrollmentReader, threshold float64, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *QuizService {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultPassThreshold
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{tx: tx, repo: repo, enrollments: enrollments, threshold: threshold, validator: validate, metrics: metrics, logger: logger}
}

// GradeSubmission grades answers for a quiz lesson and stores the attempt.
func (s *QuizService) GradeSubmission(ctx context.Context, userID string, lesson *models.Lesson, req dto.QuizSubmissionRequest) (result *dto.GradeResult, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz submission")
	}
	if lesson == nil || !lesson.Type.IsQuiz() {
		return nil, appErrors.Clone(appErrors.ErrGrading, "lesson is not a quiz")
	}

	enrollment, err := s.enrollments.FindLatestForLearner(ctx, userID, lesson.CourseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment == nil || enrollment.Status != models.EnrollmentStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentNotApproved, "")
	}

	questions, err := s.repo.QuestionsByLesson(ctx, lesson.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}

	grade, answers, err := gradeAnswers(questions, req.Answers, s.threshold)
	if err != nil {
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

	attempt := &models.QuizAttempt{UserID: userID, LessonID: lesson.ID, Score: grade.Score, Passed: grade.Passed}
	if err = s.repo.CreateAttempt(ctx, tx, attempt, answers); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record quiz attempt")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit quiz attempt")
		return nil, err
	}

	grade.AttemptID = attempt.ID
	s.metrics.RecordQuizSubmission(grade.Passed)
	s.logger.Info("quiz graded",
		zap.String("user_id", userID),
		zap.String("lesson_id", lesson.ID),
		zap.Float64("score", grade.Score),
		zap.Bool("passed", grade.Passed),
	)
	return &grade, nil
}

// gradeAnswers scores answers against questions. Free-text questions are left pending and
// count toward neither earned nor possible points.
func gradeAnswers(questions []models.Question, submitted []dto.QuizAnswer, threshold float64) (dto.GradeResult, []models.StudentAnswer, error) {
	byID := make(map[string]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	answered := make(map[string]dto.QuizAnswer, len(submitted))
	for _, answer := range submitted {
		q, ok := byID[answer.QuestionID]
		if !ok {
			return dto.GradeResult{}, nil, appErrors.Clone(appErrors.ErrGrading, fmt.Sprintf("unknown question %s", answer.QuestionID))
		}
		if _, dup := answered[answer.QuestionID]; dup {
			return dto.GradeResult{}, nil, appErrors.Clone(appErrors.ErrGrading, fmt.Sprintf("duplicate answer for question %s", answer.QuestionID))
		}
		for _, optionID := range answer.OptionIDs {
			if !hasOption(q, optionID) {
				return dto.GradeResult{}, nil, appErrors.Clone(appErrors.ErrGrading, fmt.Sprintf("option %s does not belong to question %s", optionID, q.ID))
			}
		}
		answered[answer.QuestionID] = answer
	}

	var earned, possible int
	results := make([]dto.QuestionResult, 0, len(questions))
	records := make([]models.StudentAnswer, 0, len(submitted))
	for i := range questions {
		q := &questions[i]
		answer, hasAnswer := answered[q.ID]

		if !q.Type.Objective() {
			results = append(results, dto.QuestionResult{QuestionID: q.ID, Status: dto.QuestionPending})
			if hasAnswer {
				records = append(records, models.StudentAnswer{QuestionID: q.ID, FreeText: answer.Text})
			}
			continue
		}

		possible += q.Points
		correct := hasAnswer && isCorrect(q, answer)
		result := dto.QuestionResult{QuestionID: q.ID, Status: dto.QuestionIncorrect, PointsPossible: q.Points}
		if correct {
			earned += q.Points
			result.Status = dto.QuestionCorrect
			result.PointsAwarded = q.Points
		}
		results = append(results, result)

		if hasAnswer {
			c := correct
			records = append(records, models.StudentAnswer{
				QuestionID:        q.ID,
				SelectedOptionIDs: pq.StringArray(uniqueStrings(answer.OptionIDs)),
				FreeText:          answer.Text,
				IsCorrect:         &c,
				PointsAwarded:     result.PointsAwarded,
			})
		}
	}

	if possible == 0 {
		return dto.GradeResult{}, nil, appErrors.Clone(appErrors.ErrGrading, "quiz has no gradable questions")
	}

	// pass on the exact ratio; the reported score is rounded to 2 decimals
	passed := float64(earned)*100 >= threshold*float64(possible)
	score := math.Round(float64(earned)*100/float64(possible)*100) / 100
	return dto.GradeResult{
		Passed:    passed,
		Score:     score,
		Threshold: threshold,
		Results:   results,
	}, records, nil
}

func isCorrect(q *models.Question, answer dto.QuizAnswer) bool {
	selected := uniqueStrings(answer.OptionIDs)

	switch q.Type {
	case models.QuestionSingleChoice, models.QuestionTrueFalse:
		if q.Type == models.QuestionTrueFalse && len(q.Options) == 0 {
			return q.CorrectAnswer != nil && answer.Text != nil &&
				strings.EqualFold(strings.TrimSpace(*answer.Text), strings.TrimSpace(*q.CorrectAnswer))
		}
		if len(selected) != 1 {
			return false
		}
		return optionCorrect(q, selected[0])
	case models.QuestionMultipleChoice:
		want := 0
		for _, opt := range q.Options {
			if opt.IsCorrect {
				want++
			}
		}
		if len(selected) != want {
			return false
		}
		for _, id := range selected {
			if !optionCorrect(q, id) {
				return false
			}
		}
		return true
	}
	return false
}

func hasOption(q *models.Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

func optionCorrect(q *models.Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt.IsCorrect
		}
	}
	return false
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
