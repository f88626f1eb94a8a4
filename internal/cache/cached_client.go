package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/models"
	"github.com/ceylontrails/tours-backend/pkg/catalog"
)

// CachedClient decorates a catalog client with the tour cache. Cache
// failures are logged and the catalog is consulted directly, so a Redis
// outage degrades to slower lookups rather than errors.
type CachedClient struct {
	inner  catalog.Client
	cache  *TourCache
	logger *logrus.Logger
}

// NewCachedClient wraps a catalog client with the cache.
func NewCachedClient(inner catalog.Client, cache *TourCache, logger *logrus.Logger) *CachedClient {
	return &CachedClient{
		inner:  inner,
		cache:  cache,
		logger: logger,
	}
}

// GetTour reads through the cache.
func (c *CachedClient) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	cached, err := c.cache.GetTour(ctx, tourID)
	if err != nil {
		c.logger.WithError(err).WithField("tour_id", tourID).Warn("Tour cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	tour, err := c.inner.GetTour(ctx, tourID)
	if err != nil || tour == nil {
		return tour, err
	}

	if err := c.cache.SetTour(ctx, tour); err != nil {
		c.logger.WithError(err).WithField("tour_id", tourID).Warn("Tour cache write failed")
	}
	return tour, nil
}
