// Package catalog is the client for the tour catalog service. The catalog
// owns tour content (names, prices, group sizes); this service only reads it.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ceylontrails/tours-backend/internal/models"
)

// Client looks up tours by ID. Returns nil, nil when the tour does not exist.
type Client interface {
	GetTour(ctx context.Context, tourID string) (*models.Tour, error)
}

// HTTPClient implements Client against the catalog service's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Config holds catalog client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPClient creates a new catalog client
func NewHTTPClient(config Config) *HTTPClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// tourResponse is the catalog service's tour representation.
type tourResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BasePrice    int64  `json:"base_price"`
	MaxGroupSize int    `json:"max_group_size"`
	IsActive     bool   `json:"is_active"`
}

// GetTour fetches a tour by ID.
func (c *HTTPClient) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	url := fmt.Sprintf("%s/api/v1/tours/%s", c.baseURL, tourID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, string(body))
	}

	var tr tourResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	return &models.Tour{
		ID:           tr.ID,
		Name:         tr.Name,
		BasePrice:    tr.BasePrice,
		MaxGroupSize: tr.MaxGroupSize,
		IsActive:     tr.IsActive,
	}, nil
}
