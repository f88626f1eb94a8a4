package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceylontrails/tours-backend/internal/events"
	"github.com/ceylontrails/tours-backend/internal/models"
	"github.com/ceylontrails/tours-backend/internal/services"
)

type stubCatalog struct {
	tours map[string]*models.Tour
}

func (s *stubCatalog) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	return s.tours[tourID], nil
}

func newQuoteRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cat := &stubCatalog{tours: map[string]*models.Tour{
		"tour-ella-trek": {
			ID:           "tour-ella-trek",
			Name:         "Ella Rock Trek",
			BasePrice:    5000,
			MaxGroupSize: 12,
			IsActive:     true,
		},
	}}

	bookingService := services.NewBookingService(
		nil, nil, nil, cat,
		services.NewPricingService("USD", logger),
		events.NopPublisher{},
		services.BookingServiceConfig{
			PaymentDeadline:  time.Hour,
			MaxActivePerUser: 5,
			Currency:         "USD",
		},
		logger,
	)
	handler := NewBookingHandler(bookingService, logger)

	router := gin.New()
	router.POST("/api/v1/quote", handler.Quote)
	return router
}

func postQuote(t *testing.T, router *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quote", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestQuoteEndpoint(t *testing.T) {
	router := newQuoteRouter(t)

	t.Run("Weekend Quote", func(t *testing.T) {
		w := postQuote(t, router, models.QuoteRequest{
			TourID:        "tour-ella-trek",
			StartDate:     "2025-01-18",
			EndDate:       "2025-01-20",
			TravelerCount: 2,
		})

		require.Equal(t, http.StatusOK, w.Code)

		var quote models.Quote
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
		assert.Equal(t, int64(10000), quote.BasePrice)
		assert.Equal(t, int64(500), quote.Discount)
		assert.Equal(t, int64(9500), quote.TotalPrice)
		assert.True(t, quote.Breakdown.WeekendDeparture)
	})

	t.Run("Weekday Quote Has No Discount", func(t *testing.T) {
		w := postQuote(t, router, models.QuoteRequest{
			TourID:        "tour-ella-trek",
			StartDate:     "2025-01-15",
			EndDate:       "2025-01-17",
			TravelerCount: 2,
		})

		require.Equal(t, http.StatusOK, w.Code)

		var quote models.Quote
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
		assert.Equal(t, int64(0), quote.Discount)
		assert.Equal(t, int64(10000), quote.TotalPrice)
	})

	t.Run("Unknown Tour", func(t *testing.T) {
		w := postQuote(t, router, models.QuoteRequest{
			TourID:        "tour-nowhere",
			StartDate:     "2025-01-18",
			EndDate:       "2025-01-20",
			TravelerCount: 2,
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Malformed Date", func(t *testing.T) {
		w := postQuote(t, router, models.QuoteRequest{
			TourID:        "tour-ella-trek",
			StartDate:     "18/01/2025",
			EndDate:       "2025-01-20",
			TravelerCount: 2,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Missing Fields", func(t *testing.T) {
		w := postQuote(t, router, map[string]interface{}{"tour_id": "tour-ella-trek"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
