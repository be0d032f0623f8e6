package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/repository"
)

var activeReviewStatuses = []models.ThesisStatus{
	models.StatusAssigned,
	models.StatusUnderReview,
	models.StatusGradedPendingSignature,
}

var completedReviewStatuses = []models.ThesisStatus{
	models.StatusEvaluated,
}

// DashboardService produces the reviewer workload listings. Listings are
// cached in redis with a short TTL and invalidated on transitions touching
// the reviewer.
type DashboardService interface {
	WorkloadInvalidator
	GetAssigned(ctx context.Context, principal Principal) ([]dto.ThesisSummary, error)
	GetCompleted(ctx context.Context, principal Principal) ([]dto.ThesisSummary, error)
}

type dashboardService struct {
	theses   repository.ThesisRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDashboardService builds the reviewer dashboard aggregator.
func NewDashboardService(theses repository.ThesisRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &dashboardService{
		theses:   theses,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "dashboard_service").Logger(),
		now:      time.Now,
	}
}

func (s *dashboardService) GetAssigned(ctx context.Context, principal Principal) ([]dto.ThesisSummary, error) {
	return s.list(ctx, principal, "assigned", activeReviewStatuses)
}

func (s *dashboardService) GetCompleted(ctx context.Context, principal Principal) ([]dto.ThesisSummary, error) {
	return s.list(ctx, principal, "completed", completedReviewStatuses)
}

func (s *dashboardService) list(ctx context.Context, principal Principal, kind string, statuses []models.ThesisStatus) ([]dto.ThesisSummary, error) {
	if !principal.Role.CanReview() {
		return nil, &AuthorizationError{Role: principal.Role, Action: "list a reviewer workload"}
	}

	cacheKey := workloadKey(principal.ID, kind)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var summaries []dto.ThesisSummary
			if unmarshalErr := json.Unmarshal([]byte(cached), &summaries); unmarshalErr == nil {
				s.logger.Debug().Uint("reviewer_id", principal.ID).Str("kind", kind).Msg("workload cache hit")
				return summaries, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read workload cache")
		}
	}

	theses, err := s.theses.ListByReviewer(ctx, principal.ID, statuses)
	if err != nil {
		return nil, err
	}
	summaries := dto.NewThesisSummarySlice(theses)

	if s.cache != nil {
		if payload, err := json.Marshal(summaries); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store workload cache")
			}
		}
	}

	return summaries, nil
}

// Invalidate drops both listings for a reviewer. Best effort; a failed DEL
// only means the reviewer sees a stale list until the TTL expires.
func (s *dashboardService) Invalidate(ctx context.Context, reviewerID uint) {
	if s.cache == nil {
		return
	}
	keys := []string{workloadKey(reviewerID, "assigned"), workloadKey(reviewerID, "completed")}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("reviewer_id", reviewerID).Msg("failed to invalidate workload cache")
	}
}

func workloadKey(reviewerID uint, kind string) string {
	return fmt.Sprintf("workload:reviewer:%d:%s", reviewerID, kind)
}
