package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ministry-learning-api/internal/dto"
	"github.com/noah-isme/ministry-learning-api/internal/models"
	"github.com/noah-isme/ministry-learning-api/pkg/response"
)

type streakService interface {
	TouchActivity(ctx context.Context, userID string, kind models.ActivityKind) (*models.UserStats, error)
	Stats(ctx context.Context, userID string) (*dto.StreakStats, error)
}

// ActivityHandler records streak activity.
type ActivityHandler struct {
	streaks streakService
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(streaks streakService) *ActivityHandler {
	return &ActivityHandler{streaks: streaks}
}

// Touch godoc
// @Summary Record a login or lesson activity for the current user
// @Tags Activity
// @Accept json
// @Produce json
// @Param payload body dto.ActivityRequest true "Activity"
// @Success 200 {object} response.Envelope
// @Router /activity [post]
func (h *ActivityHandler) Touch(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ActivityRequest
	if !bindJSON(c, &req, "invalid activity payload") {
		return
	}
	stats, err := h.streaks.TouchActivity(c.Request.Context(), claims.UserID, models.ActivityKind(req.Kind))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Stats godoc
// @Summary Current user's streak
// @Tags Activity
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/stats [get]
func (h *ActivityHandler) Stats(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	stats, err := h.streaks.Stats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
