package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/models"
)

// WeekendDiscountPercentage applies when the tour start date falls on a
// Saturday or Sunday.
const WeekendDiscountPercentage = 5

// PricingService computes non-binding quotes. It is stateless and
// deterministic: the same inputs always produce the same quote.
type PricingService struct {
	currency string
	logger   *logrus.Logger
}

// NewPricingService creates a new PricingService
func NewPricingService(currency string, logger *logrus.Logger) *PricingService {
	return &PricingService{
		currency: currency,
		logger:   logger,
	}
}

// Quote prices a tour for a group. pricePerTraveler is the tour's base price
// per person in minor units. The weekend rule looks at the start date's
// weekday only; the discount is rounded half up on the base total.
func (s *PricingService) Quote(pricePerTraveler int64, startDate, endDate time.Time, travelerCount int) (*models.Quote, error) {
	if travelerCount < 1 {
		return nil, models.NewValidationError("invalid traveler count", map[string]string{
			"traveler_count": "must be at least 1",
		})
	}
	if pricePerTraveler < 0 {
		return nil, models.NewValidationError("invalid price", map[string]string{
			"price_per_traveler": "must not be negative",
		})
	}
	if endDate.Before(startDate) {
		return nil, models.NewValidationError("invalid date range", map[string]string{
			"end_date": "must not be before start_date",
		})
	}

	basePrice := pricePerTraveler * int64(travelerCount)

	discountPct := 0
	weekend := isWeekend(startDate)
	if weekend {
		discountPct = WeekendDiscountPercentage
	}

	// Round half up in integer arithmetic, no floats near money.
	discount := (basePrice*int64(discountPct) + 50) / 100

	quote := &models.Quote{
		BasePrice:          basePrice,
		DiscountPercentage: discountPct,
		Discount:           discount,
		TotalPrice:         basePrice - discount,
		Currency:           s.currency,
		Breakdown: models.QuoteBreakdown{
			PricePerTraveler: pricePerTraveler,
			TravelerCount:    travelerCount,
			StartDate:        startDate.Format("2006-01-02"),
			WeekendDeparture: weekend,
		},
	}

	s.logger.WithFields(logrus.Fields{
		"base_price":  quote.BasePrice,
		"discount":    quote.Discount,
		"total_price": quote.TotalPrice,
		"weekend":     weekend,
	}).Debug("Quote computed")

	return quote, nil
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
