package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/ministry-learning-api/internal/dto"
	"github.com/noah-isme/ministry-learning-api/internal/models"
	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type userStatsRepository interface {
	Get(ctx context.Context, userID string) (*models.UserStats, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, userID string) (*models.UserStats, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, stats *models.UserStats) error
}

// StreakService maintains daily activity streaks. Day boundaries are calendar days in a
// single configured location, shared by every activity kind.
type StreakService struct {
	tx       txProvider
	repo     userStatsRepository
	location *time.Location
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewStreakService constructs StreakService. A nil location means UTC.
func NewStreakService(tx txProvider, repo userStatsRepository, location *time.Location, metrics *MetricsService, logger *zap.Logger) *StreakService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreakService{tx: tx, repo: repo, location: location, metrics: metrics, logger: logger, now: time.Now}
}

// TouchActivity advances the user's streak for an activity happening now.
func (s *StreakService) TouchActivity(ctx context.Context, userID string, kind models.ActivityKind) (stats *models.UserStats, err error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id required")
	}
	if kind != models.ActivityLogin && kind != models.ActivityLessonCompletion {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown activity kind")
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

	current, err := s.repo.GetForUpdate(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		current, err = nil, nil
	}
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user stats")
		return nil, err
	}

	next := advanceStreak(current, userID, s.now(), s.location)
	if err = s.repo.Upsert(ctx, tx, &next); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save user stats")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit user stats")
		return nil, err
	}

	s.metrics.RecordStreakTouch(kind)
	s.logger.Debug("activity recorded", zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Int("streak", next.CurrentStreak))
	return &next, nil
}

// Stats returns the stored counters and the effective streak as of now.
func (s *StreakService) Stats(ctx context.Context, userID string) (*dto.StreakStats, error) {
	stats, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.StreakStats{UserStats: models.UserStats{UserID: userID}}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user stats")
	}
	return &dto.StreakStats{UserStats: *stats, EffectiveStreak: effectiveStreak(stats, s.now(), s.location)}, nil
}

// advanceStreak applies one activity at now to the previous stats.
func advanceStreak(prev *models.UserStats, userID string, now time.Time, loc *time.Location) models.UserStats {
	at := now.UTC()
	next := models.UserStats{UserID: userID, CurrentStreak: 1, LongestStreak: 1, LastActivityAt: &at}
	if prev == nil {
		return next
	}
	next.LongestStreak = prev.LongestStreak

	if prev.LastActivityAt != nil {
		switch daysBetween(*prev.LastActivityAt, now, loc) {
		case 0:
			next.CurrentStreak = prev.CurrentStreak
			if next.CurrentStreak < 1 {
				next.CurrentStreak = 1
			}
		case 1:
			next.CurrentStreak = prev.CurrentStreak + 1
		default:
			// a gap, or a clock that moved backwards across a day boundary
			next.CurrentStreak = 1
		}
	}
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	return next
}

// effectiveStreak is the streak a reader should see: it lapses once yesterday had no activity.
func effectiveStreak(stats *models.UserStats, now time.Time, loc *time.Location) int {
	if stats == nil || stats.LastActivityAt == nil {
		return 0
	}
	if d := daysBetween(*stats.LastActivityAt, now, loc); d < 0 || d > 1 {
		return 0
	}
	return stats.CurrentStreak
}

// daysBetween counts calendar days from a to b in loc.
func daysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	dayA := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	dayB := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(dayB.Sub(dayA).Hours() / 24)
}
