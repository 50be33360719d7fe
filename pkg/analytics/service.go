// Package analytics computes the admin dashboard of an organization.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/assetdesk/pkg/cache"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/logger"
	"github.com/jordanlanch/assetdesk/pkg/metrics"
	"github.com/jordanlanch/assetdesk/pkg/models"
)

// CacheTTL is how long a computed dashboard is served from cache
const CacheTTL = 60 * time.Second

// Service computes dashboards with an optional read-through cache
type Service struct {
	db      *database.Client
	cache   domain.CacheRepository
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewService creates a new analytics service. cache may be nil.
func NewService(db *database.Client, cache domain.CacheRepository, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{db: db, cache: cache, log: log}
}

// SetMetrics sets the metrics recorder
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func cacheKey(orgID int) string {
	return fmt.Sprintf("analytics:dashboard:%d", orgID)
}

// Dashboard returns the organization's dashboard, computed relative to now
func (s *Service) Dashboard(ctx context.Context, orgID int, now time.Time) (*models.DashboardResponse, error) {
	key := cacheKey(orgID)

	var cached models.DashboardResponse
	err := cache.GetJSON(ctx, s.cache, key, &cached)
	switch {
	case err == nil:
		s.metrics.RecordCacheHit("dashboard")
		return &cached, nil
	case !errors.Is(err, domain.ErrCacheMiss):
		s.log.Warn("dashboard cache read failed", "organization_id", orgID, "error", err)
	}
	s.metrics.RecordCacheMiss("dashboard")

	dashboard, err := s.compute(ctx, orgID, now)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, dashboard, CacheTTL); err != nil {
		s.log.Warn("dashboard cache write failed", "organization_id", orgID, "error", err)
	}
	return dashboard, nil
}

// Invalidate drops the cached dashboard of the organization
func (s *Service) Invalidate(ctx context.Context, orgID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(orgID)); err != nil {
		s.log.Warn("dashboard cache invalidation failed", "organization_id", orgID, "error", err)
	}
}
