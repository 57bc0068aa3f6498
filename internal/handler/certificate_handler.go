package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ministry-learning-api/internal/dto"
	"github.com/noah-isme/ministry-learning-api/internal/models"
	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
	"github.com/noah-isme/ministry-learning-api/pkg/response"
)

type certificateService interface {
	IssueIfEligible(ctx context.Context, userID, courseID string) (*dto.CertificateOutcome, error)
	ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error)
	Revoke(ctx context.Context, id string, req dto.RevokeCertificateRequest, actorID string) (*models.Certificate, error)
	Reissue(ctx context.Context, id, actorID string) (*dto.CertificateOutcome, error)
	Verify(ctx context.Context, code string) (*dto.CertificateVerification, error)
	ResolveDownload(ctx context.Context, token string) (*dto.CertificateDownload, error)
}

// CertificateHandler exposes certificate endpoints.
type CertificateHandler struct {
	certificates certificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates certificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Issue godoc
// @Summary Issue the course certificate if eligible
// @Tags Certificates
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /courses/{courseId}/certificate [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	outcome, err := h.certificates.IssueIfEligible(c.Request.Context(), claims.UserID, c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if outcome.Issued {
		status = http.StatusCreated
	}
	response.JSON(c, status, outcome, nil)
}

// List godoc
// @Summary List the current learner's certificates
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	userID := claims.UserID
	if target := c.Query("userId"); target != "" && claims.Role != models.RoleLearner {
		userID = target
	}
	certs, err := h.certificates.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// Revoke godoc
// @Summary Revoke a certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body dto.RevokeCertificateRequest false "Revocation reason"
// @Success 200 {object} response.Envelope
// @Router /certificates/{id}/revoke [post]
func (h *CertificateHandler) Revoke(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.RevokeCertificateRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid revocation payload") {
		return
	}
	cert, err := h.certificates.Revoke(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// Reissue godoc
// @Summary Reissue a revoked certificate
// @Tags Certificates
// @Produce json
// @Param id path string true "Revoked certificate ID"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates/{id}/reissue [post]
func (h *CertificateHandler) Reissue(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	outcome, err := h.certificates.Reissue(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if outcome.Issued {
		status = http.StatusCreated
	}
	response.JSON(c, status, outcome, nil)
}

// Verify godoc
// @Summary Verify a certificate code
// @Tags Certificates
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/verify/{code} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	result, err := h.certificates.Verify(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a certificate via signed token
// @Tags Certificates
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /certificates/download/{token} [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	token := c.Param("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.certificates.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.Content.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.FileName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.Size, "application/pdf", result.Content, nil)
}
