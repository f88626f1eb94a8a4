package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ceylontrails/tours-backend/internal/models"
)

// PaymentRepository handles database operations for payment attempts. The
// attempt write and the booking transition it implies always commit in one
// transaction, so a crash between the two can never strand an approved
// attempt on an unconfirmed booking or an orphaned pending attempt.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// SubmitAttempt inserts a pending_verify attempt and moves the booking to
// pending_verification in the same transaction. The insert is guarded so a
// booking can hold at most one pending attempt; a second submission while one
// is under review is a conflict.
func (r *PaymentRepository) SubmitAttempt(bookingID uuid.UUID, amount int64) (*models.PaymentAttempt, error) {
	attempt := &models.PaymentAttempt{
		ID:        uuid.New(),
		BookingID: bookingID,
		Amount:    amount,
		Status:    models.PaymentStatusPendingVerify,
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin submit transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
		INSERT INTO payment_attempts (id, booking_id, amount, status)
		SELECT $1, $2, $3, 'pending_verify'
		WHERE NOT EXISTS (
			SELECT 1 FROM payment_attempts
			WHERE booking_id = $2 AND status = 'pending_verify'
		)
		RETURNING submitted_at`,
		attempt.ID, bookingID, amount,
	).Scan(&attempt.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, models.NewConflictError("a payment attempt for this booking is already under review")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create payment attempt: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE bookings
		SET status = 'pending_verification', updated_at = NOW()
		WHERE id = $1 AND status = 'pending_payment'`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to move booking under review: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, models.NewInvalidTransitionError("booking is not awaiting payment")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment submission: %w", err)
	}
	return attempt, nil
}

// GetAttemptByID retrieves a payment attempt. Returns nil, nil when absent.
func (r *PaymentRepository) GetAttemptByID(attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.Get(&attempt, `
		SELECT id, booking_id, amount, status, submitted_at, verified_at
		FROM payment_attempts
		WHERE id = $1`,
		attemptID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment attempt: %w", err)
	}
	return &attempt, nil
}

// Approve finalizes a pending_verify attempt as approved and confirms its
// booking atomically.
func (r *PaymentRepository) Approve(attemptID uuid.UUID) error {
	return r.finalize(attemptID, models.PaymentStatusApproved, models.BookingStatusConfirmed)
}

// Reject finalizes a pending_verify attempt as rejected and returns its
// booking to pending_payment atomically, so the traveler can retry.
func (r *PaymentRepository) Reject(attemptID uuid.UUID) error {
	return r.finalize(attemptID, models.PaymentStatusRejected, models.BookingStatusPendingPayment)
}

func (r *PaymentRepository) finalize(attemptID uuid.UUID, status models.PaymentAttemptStatus, bookingStatus models.BookingStatus) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin finalize transaction: %w", err)
	}
	defer tx.Rollback()

	var bookingID uuid.UUID
	err = tx.QueryRow(`
		UPDATE payment_attempts
		SET status = $2, verified_at = NOW()
		WHERE id = $1 AND status = 'pending_verify'
		RETURNING booking_id`,
		attemptID, status).Scan(&bookingID)
	if err == sql.ErrNoRows {
		return models.NewInvalidTransitionError("payment attempt has already been decided")
	}
	if err != nil {
		return fmt.Errorf("failed to finalize payment attempt: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE bookings
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_verification'`,
		bookingID, bookingStatus)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.NewInvalidTransitionError(fmt.Sprintf("booking cannot move to %s from its current status", bookingStatus))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decision: %w", err)
	}
	return nil
}
