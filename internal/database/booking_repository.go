package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ceylontrails/tours-backend/internal/models"
)

const bookingColumns = `
	id, reference, user_id, tour_id, departure_id, reservation_token,
	traveler_count, contact_name, contact_email, contact_phone,
	base_price, discount, total_price, currency, status,
	special_requests, cancellation_reason, refund_amount,
	payment_deadline, idempotency_key, created_at, updated_at`

// BookingRepository handles database operations for the bookings table.
// Status changes go through guarded updates only: each carries the allowed
// source statuses in its WHERE clause and reports an invalid transition when
// no row matched, so concurrent writers cannot race a booking out of the
// transition table. The payment-driven transitions live in PaymentRepository,
// where they commit in the same transaction as the attempt.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a new booking in pending_payment.
func (r *BookingRepository) Create(booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, reference, user_id, tour_id, departure_id, reservation_token,
			traveler_count, contact_name, contact_email, contact_phone,
			base_price, discount, total_price, currency, status,
			special_requests, payment_deadline, idempotency_key
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)
		RETURNING created_at, updated_at`

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	err := r.db.QueryRow(
		query,
		booking.ID, booking.Reference, booking.UserID, booking.TourID,
		booking.DepartureID, booking.ReservationToken,
		booking.TravelerCount, booking.ContactName, booking.ContactEmail, booking.ContactPhone,
		booking.BasePrice, booking.Discount, booking.TotalPrice, booking.Currency, booking.Status,
		booking.SpecialRequests, booking.PaymentDeadline, booking.IdempotencyKey,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by ID. Returns nil, nil when absent.
func (r *BookingRepository) GetByID(bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetByReference retrieves a booking by its human-facing reference.
func (r *BookingRepository) GetByReference(reference string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `SELECT`+bookingColumns+` FROM bookings WHERE reference = $1`, reference)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by reference: %w", err)
	}
	return &booking, nil
}

// GetByIdempotencyKey looks up an earlier booking created by the same user
// with the same idempotency key. Returns nil, nil when no such booking exists.
func (r *BookingRepository) GetByIdempotencyKey(userID uuid.UUID, key string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking,
		`SELECT`+bookingColumns+` FROM bookings WHERE user_id = $1 AND idempotency_key = $2`,
		userID, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by idempotency key: %w", err)
	}
	return &booking, nil
}

// ListByUser returns a page of the user's bookings, newest first.
func (r *BookingRepository) ListByUser(userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.db.Select(&bookings,
		`SELECT`+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// CountActiveByUser counts the user's non-terminal bookings, for the
// per-user active booking cap.
func (r *BookingRepository) CountActiveByUser(userID uuid.UUID) (int, error) {
	var count int
	err := r.db.Get(&count,
		`SELECT COUNT(*) FROM bookings WHERE user_id = $1 AND status IN ('pending_payment', 'pending_verification')`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count active bookings: %w", err)
	}
	return count, nil
}

// ReferenceExists reports whether a booking reference is already taken.
func (r *BookingRepository) ReferenceExists(reference string) (bool, error) {
	var exists bool
	err := r.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM bookings WHERE reference = $1)`, reference)
	if err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return exists, nil
}

// MarkCancelled cancels a booking and records the reason and computed refund.
// Confirmed bookings are terminal: the guard excludes them so a cancel racing
// a payment approval cannot cancel a just-confirmed booking.
func (r *BookingRepository) MarkCancelled(bookingID uuid.UUID, reason string, refundAmount int64) error {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET status = 'cancelled', cancellation_reason = $2, refund_amount = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending_payment', 'pending_verification')`,
		bookingID, reason, refundAmount)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.NewInvalidTransitionError("booking cannot be cancelled in its current status")
	}
	return nil
}

// MarkExpired expires a booking whose payment deadline has passed. The guard
// includes the deadline, so a booking that paid just in time is untouched;
// zero rows affected is not an error here because the sweep races legitimate
// payments by design of the guard.
func (r *BookingRepository) MarkExpired(bookingID uuid.UUID, now time.Time) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'pending_payment' AND payment_deadline <= $2`,
		bookingID, now)
	if err != nil {
		return false, fmt.Errorf("failed to expire booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListExpiredDue returns pending_payment bookings whose deadline has passed,
// oldest first, for the expiry sweep.
func (r *BookingRepository) ListExpiredDue(now time.Time, limit int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.db.Select(&bookings,
		`SELECT`+bookingColumns+`
		 FROM bookings
		 WHERE status = 'pending_payment' AND payment_deadline <= $1
		 ORDER BY payment_deadline ASC
		 LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired bookings: %w", err)
	}
	return bookings, nil
}

