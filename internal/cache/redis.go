package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceylontrails/tours-backend/internal/config"
	"github.com/ceylontrails/tours-backend/internal/models"
)

// TourCache is a read-through cache for catalog tour lookups. A cache miss
// or a cache error both fall back to the catalog; stale prices age out with
// the TTL.
type TourCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTourCache creates a cache backed by the configured Redis instance.
func NewTourCache(cfg config.RedisConfig) *TourCache {
	return &TourCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		ttl:    cfg.TTL,
	}
}

// GetTour returns the cached tour, or nil, nil on a miss.
func (c *TourCache) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	data, err := c.client.Get(ctx, tourKey(tourID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var tour models.Tour
	if err := json.Unmarshal(data, &tour); err != nil {
		return nil, err
	}
	return &tour, nil
}

// SetTour stores a tour under the configured TTL.
func (c *TourCache) SetTour(ctx context.Context, tour *models.Tour) error {
	payload, err := json.Marshal(tour)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tourKey(tour.ID), payload, c.ttl).Err()
}

// Ping verifies the Redis connection.
func (c *TourCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (c *TourCache) Close() error {
	return c.client.Close()
}

func tourKey(tourID string) string {
	return fmt.Sprintf("cache:tour:%s", tourID)
}
