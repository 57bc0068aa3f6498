package dto

import "github.com/noah-isme/ministry-learning-api/internal/models"

// ActivityRequest records a streak-relevant activity.
type ActivityRequest struct {
	Kind string `json:"kind" validate:"required,oneof=login lesson_completion"`
}

// StreakStats adds the effective streak to the stored counters. EffectiveStreak
// reads 0 once a full calendar day has been missed.
type StreakStats struct {
	models.UserStats
	EffectiveStreak int `json:"effective_streak"`
}
