package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ministry-learning-api/internal/middleware"
	"github.com/noah-isme/ministry-learning-api/internal/models"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Enrollments  *EnrollmentHandler
	Progress     *ProgressHandler
	Certificates *CertificateHandler
	Activity     *ActivityHandler
	Metrics      *MetricsHandler
}

// RegisterRoutes mounts the API on group. Verification and signed downloads are public;
// everything else requires a bearer token.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, auth middleware.TokenValidator, logger *zap.Logger) {
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleLeader)
	admin := middleware.RequireRoles(models.RoleAdmin)

	public := group.Group("/certificates")
	public.GET("/verify/:code", h.Certificates.Verify)
	public.GET("/download/:token", h.Certificates.Download)

	secured := group.Group("")
	secured.Use(middleware.JWT(auth))

	secured.POST("/courses/:courseId/enrollments", h.Enrollments.Request)
	secured.GET("/courses/:courseId/progress", h.Progress.CourseProgress)
	secured.POST("/courses/:courseId/certificate", h.Certificates.Issue)

	secured.GET("/enrollments", h.Enrollments.List)
	secured.GET("/enrollments/export", staff, h.Enrollments.Export)
	secured.GET("/enrollments/:id", h.Enrollments.Get)
	secured.PATCH("/enrollments/:id/status", staff, middleware.Audit(logger, "enrollment.status", "enrollment"), h.Enrollments.UpdateStatus)
	secured.POST("/enrollments/:id/recalculate", admin, middleware.Audit(logger, "enrollment.recalculate", "enrollment"), h.Progress.Recalculate)

	secured.PUT("/lessons/:lessonId/completion", h.Progress.SetCompletion)
	secured.POST("/lessons/:lessonId/views", h.Progress.RecordView)
	secured.POST("/lessons/:lessonId/quiz-submissions", h.Progress.SubmitQuiz)

	secured.GET("/certificates", h.Certificates.List)
	secured.POST("/certificates/:id/revoke", admin, middleware.Audit(logger, "certificate.revoke", "certificate"), h.Certificates.Revoke)
	secured.POST("/certificates/:id/reissue", admin, middleware.Audit(logger, "certificate.reissue", "certificate"), h.Certificates.Reissue)

	secured.POST("/activity", h.Activity.Touch)
	secured.GET("/me/stats", h.Activity.Stats)

	secured.GET("/metrics/summary", admin, h.Metrics.Summary)
}
