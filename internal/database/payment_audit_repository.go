package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/models"
)

// PaymentAuditRepository handles the append-only payment audit trail
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry
// This should NEVER fail silently - payment events must be logged
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, attempt_id, booking_id,
			event_type, event_source, decision,
			idempotency_key, is_duplicate,
			expected_amount, received_amount, amounts_match,
			error_message, ip_address, user_agent,
			created_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.AttemptID, audit.BookingID,
		audit.EventType, audit.EventSource, audit.Decision,
		audit.IdempotencyKey, audit.IsDuplicate,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.AmountsMatch,
		audit.ErrorMessage, audit.IPAddress, audit.UserAgent,
		audit.CreatedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"attempt_id": audit.AttemptID,
		}).Error("CRITICAL: Failed to log payment audit - THIS SHOULD NEVER HAPPEN")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"attempt_id": audit.AttemptID,
	}).Debug("Payment audit logged")

	return nil
}

// CheckDuplicate checks if a decision for this attempt has already been
// applied. Returns true if duplicate, false if new.
func (r *PaymentAuditRepository) CheckDuplicate(ctx context.Context, attemptID uuid.UUID, decision models.PaymentDecision) (bool, error) {
	idempotencyKey := DecisionIdempotencyKey(attemptID, decision)

	var count int
	query := `
		SELECT COUNT(*) FROM payment_audits
		WHERE attempt_id = $1
		AND event_type = $2
		AND idempotency_key = $3
		AND is_duplicate = FALSE`

	err := r.db.GetContext(ctx, &count, query, attemptID, models.PaymentEventDecisionApplied, idempotencyKey)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return count > 0, nil
}

// DecisionIdempotencyKey derives the dedup key for a decision delivery.
// Replayed deliveries of the same verdict for the same attempt share this key.
func DecisionIdempotencyKey(attemptID uuid.UUID, decision models.PaymentDecision) string {
	return fmt.Sprintf("%s-%s", attemptID, decision)
}

// GetByAttemptID retrieves all audit entries for a payment attempt
func (r *PaymentAuditRepository) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE attempt_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by attempt ID: %w", err)
	}

	return audits, nil
}

// GetAmountMismatches retrieves all audits where amounts don't match
// This is CRITICAL for fraud detection
func (r *PaymentAuditRepository) GetAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE amounts_match = FALSE
		ORDER BY created_at DESC
		LIMIT $1`

	err := r.db.SelectContext(ctx, &audits, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get amount mismatches: %w", err)
	}

	return audits, nil
}
