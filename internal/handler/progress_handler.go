package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ministry-learning-api/internal/dto"
	"github.com/noah-isme/ministry-learning-api/internal/models"
	"github.com/noah-isme/ministry-learning-api/pkg/response"
)

type progressService interface {
	SetLessonCompletion(ctx context.Context, userID, lessonID string, req dto.SetLessonCompletionRequest) (*dto.CompletionResult, error)
	CourseProgress(ctx context.Context, userID, courseID string) (*dto.CourseProgressView, error)
	Recalculate(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
	RecordView(ctx context.Context, lessonID string) (*dto.LessonViewResult, error)
	SubmitQuiz(ctx context.Context, userID, lessonID string, req dto.QuizSubmissionRequest) (*dto.QuizSubmissionResult, error)
}

// ProgressHandler exposes lesson completion, quiz submission and course progress.
type ProgressHandler struct {
	progress progressService
}

// NewProgressHandler constructs ProgressHandler.
func NewProgressHandler(progress progressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// CourseProgress godoc
// @Summary Current learner's progress in a course
// @Tags Progress
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/progress [get]
func (h *ProgressHandler) CourseProgress(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	view, err := h.progress.CourseProgress(c.Request.Context(), claims.UserID, c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// SetCompletion godoc
// @Summary Mark a lesson complete or incomplete
// @Tags Progress
// @Accept json
// @Produce json
// @Param lessonId path string true "Lesson ID"
// @Param payload body dto.SetLessonCompletionRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /lessons/{lessonId}/completion [put]
func (h *ProgressHandler) SetCompletion(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SetLessonCompletionRequest
	if !bindJSON(c, &req, "invalid completion payload") {
		return
	}
	result, err := h.progress.SetLessonCompletion(c.Request.Context(), claims.UserID, c.Param("lessonId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RecordView godoc
// @Summary Count a lesson view
// @Tags Progress
// @Produce json
// @Param lessonId path string true "Lesson ID"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{lessonId}/views [post]
func (h *ProgressHandler) RecordView(c *gin.Context) {
	result, err := h.progress.RecordView(c.Request.Context(), c.Param("lessonId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// SubmitQuiz godoc
// @Summary Submit quiz answers
// @Description Grades the submission; a passing grade completes the lesson.
// @Tags Progress
// @Accept json
// @Produce json
// @Param lessonId path string true "Lesson ID"
// @Param payload body dto.QuizSubmissionRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lessons/{lessonId}/quiz-submissions [post]
func (h *ProgressHandler) SubmitQuiz(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.QuizSubmissionRequest
	if !bindJSON(c, &req, "invalid quiz submission") {
		return
	}
	result, err := h.progress.SubmitQuiz(c.Request.Context(), claims.UserID, c.Param("lessonId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Recalculate godoc
// @Summary Recompute an enrollment's progress
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/recalculate [post]
func (h *ProgressHandler) Recalculate(c *gin.Context) {
	enrollment, err := h.progress.Recalculate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
