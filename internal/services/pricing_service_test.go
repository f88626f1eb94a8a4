package services

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceylontrails/tours-backend/internal/models"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestQuoteWeekendDiscount(t *testing.T) {
	svc := NewPricingService("USD", newTestLogger())

	// 2025-01-18 is a Saturday
	quote, err := svc.Quote(5000, date("2025-01-18"), date("2025-01-20"), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(10000), quote.BasePrice)
	assert.Equal(t, 5, quote.DiscountPercentage)
	assert.Equal(t, int64(500), quote.Discount)
	assert.Equal(t, int64(9500), quote.TotalPrice)
	assert.Equal(t, "USD", quote.Currency)
	assert.True(t, quote.Breakdown.WeekendDeparture)
	assert.Equal(t, 2, quote.Breakdown.TravelerCount)
}

func TestQuoteWeekdayNoDiscount(t *testing.T) {
	svc := NewPricingService("USD", newTestLogger())

	// 2025-01-15 is a Wednesday
	quote, err := svc.Quote(5000, date("2025-01-15"), date("2025-01-17"), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(10000), quote.BasePrice)
	assert.Equal(t, 0, quote.DiscountPercentage)
	assert.Equal(t, int64(0), quote.Discount)
	assert.Equal(t, int64(10000), quote.TotalPrice)
	assert.False(t, quote.Breakdown.WeekendDeparture)
}

func TestQuoteSundayDiscount(t *testing.T) {
	svc := NewPricingService("USD", newTestLogger())

	// 2025-01-19 is a Sunday
	quote, err := svc.Quote(3333, date("2025-01-19"), date("2025-01-19"), 3)
	require.NoError(t, err)

	assert.Equal(t, int64(9999), quote.BasePrice)
	// 5% of 9999 is 499.95, rounded half up to 500
	assert.Equal(t, int64(500), quote.Discount)
	assert.Equal(t, int64(9499), quote.TotalPrice)
}

func TestQuoteDeterministic(t *testing.T) {
	svc := NewPricingService("USD", newTestLogger())

	first, err := svc.Quote(5000, date("2025-01-18"), date("2025-01-20"), 2)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		quote, err := svc.Quote(5000, date("2025-01-18"), date("2025-01-20"), 2)
		require.NoError(t, err)
		assert.Equal(t, first, quote)
	}
}

func TestQuoteValidation(t *testing.T) {
	svc := NewPricingService("USD", newTestLogger())

	t.Run("Zero Travelers", func(t *testing.T) {
		_, err := svc.Quote(5000, date("2025-01-18"), date("2025-01-20"), 0)
		assert.True(t, models.IsKind(err, models.ErrKindValidationFailed))
	})

	t.Run("Negative Price", func(t *testing.T) {
		_, err := svc.Quote(-1, date("2025-01-18"), date("2025-01-20"), 2)
		assert.True(t, models.IsKind(err, models.ErrKindValidationFailed))
	})

	t.Run("End Before Start", func(t *testing.T) {
		_, err := svc.Quote(5000, date("2025-01-20"), date("2025-01-18"), 2)
		assert.True(t, models.IsKind(err, models.ErrKindValidationFailed))
	})

	t.Run("Single Day Trip Is Valid", func(t *testing.T) {
		_, err := svc.Quote(5000, date("2025-01-18"), date("2025-01-18"), 2)
		assert.NoError(t, err)
	})
}
