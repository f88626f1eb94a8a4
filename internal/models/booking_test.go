package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatusTransitions(t *testing.T) {
	t.Run("Allowed", func(t *testing.T) {
		assert.True(t, BookingStatusPendingPayment.CanTransitionTo(BookingStatusPendingVerification))
		assert.True(t, BookingStatusPendingPayment.CanTransitionTo(BookingStatusCancelled))
		assert.True(t, BookingStatusPendingPayment.CanTransitionTo(BookingStatusExpired))
		assert.True(t, BookingStatusPendingVerification.CanTransitionTo(BookingStatusConfirmed))
		assert.True(t, BookingStatusPendingVerification.CanTransitionTo(BookingStatusPendingPayment))
		assert.True(t, BookingStatusPendingVerification.CanTransitionTo(BookingStatusCancelled))
	})

	t.Run("Rejected", func(t *testing.T) {
		assert.False(t, BookingStatusPendingPayment.CanTransitionTo(BookingStatusConfirmed))
		assert.False(t, BookingStatusPendingVerification.CanTransitionTo(BookingStatusExpired))
		assert.False(t, BookingStatusConfirmed.CanTransitionTo(BookingStatusPendingPayment))
	})

	t.Run("Terminal States Allow Nothing", func(t *testing.T) {
		terminals := []BookingStatus{BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired}
		all := []BookingStatus{
			BookingStatusPendingPayment, BookingStatusPendingVerification,
			BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired,
		}
		for _, from := range terminals {
			assert.True(t, from.IsTerminal())
			for _, to := range all {
				assert.False(t, from.CanTransitionTo(to), "%s -> %s should be rejected", from, to)
			}
		}
	})
}
