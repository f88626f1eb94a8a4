package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle status of a booking.
// Matches PostgreSQL ENUM: booking_status
type BookingStatus string

const (
	BookingStatusPendingPayment      BookingStatus = "pending_payment"      // Seats reserved, waiting for bank transfer
	BookingStatusPendingVerification BookingStatus = "pending_verification" // Payment evidence submitted, under review
	BookingStatusConfirmed           BookingStatus = "confirmed"            // Payment approved
	BookingStatusCancelled           BookingStatus = "cancelled"            // Traveler cancelled, seats released
	BookingStatusExpired             BookingStatus = "expired"              // Payment deadline passed, seats released
)

// bookingTransitions is the closed transition table. Any transition not
// listed here is rejected regardless of caller.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPendingPayment:      {BookingStatusPendingVerification, BookingStatusCancelled, BookingStatusExpired},
	BookingStatusPendingVerification: {BookingStatusConfirmed, BookingStatusPendingPayment, BookingStatusCancelled},
	BookingStatusConfirmed:           {},
	BookingStatusCancelled:           {},
	BookingStatusExpired:             {},
}

// CanTransitionTo reports whether the transition s -> next is in the table.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// Booking represents a reservation of seats on a tour departure. Status is
// written only by the lifecycle service through guarded repository updates;
// all other fields are set at creation except the cancellation pair, which is
// written once when the booking is cancelled.
type Booking struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	Reference          string        `json:"reference" db:"reference"` // human-facing, BK-xxxxxxxx
	UserID             uuid.UUID     `json:"user_id" db:"user_id"`
	TourID             string        `json:"tour_id" db:"tour_id"`
	DepartureID        uuid.UUID     `json:"departure_id" db:"departure_id"`
	ReservationToken   uuid.UUID     `json:"-" db:"reservation_token"`
	TravelerCount      int           `json:"traveler_count" db:"traveler_count"`
	ContactName        string        `json:"contact_name" db:"contact_name"`
	ContactEmail       string        `json:"contact_email" db:"contact_email"`
	ContactPhone       string        `json:"contact_phone" db:"contact_phone"`
	BasePrice          int64         `json:"base_price" db:"base_price"`
	Discount           int64         `json:"discount" db:"discount"`
	TotalPrice         int64         `json:"total_price" db:"total_price"`
	Currency           string        `json:"currency" db:"currency"`
	Status             BookingStatus `json:"status" db:"status"`
	SpecialRequests    *string       `json:"special_requests,omitempty" db:"special_requests"`
	CancellationReason *string       `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	RefundAmount       *int64        `json:"refund_amount,omitempty" db:"refund_amount"`
	PaymentDeadline    time.Time     `json:"payment_deadline" db:"payment_deadline"`
	IdempotencyKey     *string       `json:"-" db:"idempotency_key"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// ContactInfo carries the traveler's contact details on a booking request.
type ContactInfo struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required"`
}

// CreateBookingRequest is the request body for POST /bookings.
type CreateBookingRequest struct {
	TourID          string      `json:"tour_id" binding:"required"`
	DepartureID     string      `json:"departure_id" binding:"required"`
	TravelerCount   int         `json:"traveler_count" binding:"required,min=1"`
	Contact         ContactInfo `json:"contact" binding:"required"`
	SpecialRequests *string     `json:"special_requests,omitempty"`
	IdempotencyKey  *string     `json:"idempotency_key,omitempty"`
}

// CancelBookingRequest is the request body for PATCH /bookings/:id/cancel.
type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// QuoteRequest is the request body for POST /quote. Dates are calendar dates
// in ISO form; the weekend rule looks at the start date's weekday only.
type QuoteRequest struct {
	TourID        string `json:"tour_id" binding:"required"`
	StartDate     string `json:"start_date" binding:"required"` // "2025-01-18"
	EndDate       string `json:"end_date" binding:"required"`
	TravelerCount int    `json:"traveler_count" binding:"required"`
}

// Quote is a non-binding price computation. It reserves nothing and is
// deterministic for identical inputs.
type Quote struct {
	BasePrice          int64          `json:"base_price"`
	DiscountPercentage int            `json:"discount_percentage"`
	Discount           int64          `json:"discount"`
	TotalPrice         int64          `json:"total_price"`
	Currency           string         `json:"currency"`
	Breakdown          QuoteBreakdown `json:"breakdown"`
}

// QuoteBreakdown explains how the quote was computed.
type QuoteBreakdown struct {
	PricePerTraveler int64  `json:"price_per_traveler"`
	TravelerCount    int    `json:"traveler_count"`
	StartDate        string `json:"start_date"`
	WeekendDeparture bool   `json:"weekend_departure"`
}
