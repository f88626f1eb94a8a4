package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentAttemptStatus represents the status of a payment attempt.
// Matches PostgreSQL ENUM: payment_attempt_status
type PaymentAttemptStatus string

const (
	PaymentStatusPendingVerify PaymentAttemptStatus = "pending_verify"
	PaymentStatusApproved      PaymentAttemptStatus = "approved"
	PaymentStatusRejected      PaymentAttemptStatus = "rejected"
)

// PaymentDecision is the verdict a reviewer or webhook delivers on an attempt.
type PaymentDecision string

const (
	DecisionApproved PaymentDecision = "approved"
	DecisionRejected PaymentDecision = "rejected"
)

// PaymentAttempt records one submission of bank-transfer evidence for a
// booking. At most one attempt per booking may be pending_verify at a time;
// the repository enforces this on insert.
type PaymentAttempt struct {
	ID          uuid.UUID            `json:"id" db:"id"`
	BookingID   uuid.UUID            `json:"booking_id" db:"booking_id"`
	Amount      int64                `json:"amount" db:"amount"`
	Status      PaymentAttemptStatus `json:"status" db:"status"`
	SubmittedAt time.Time            `json:"submitted_at" db:"submitted_at"`
	VerifiedAt  *time.Time           `json:"verified_at,omitempty" db:"verified_at"`
}

// PaymentEventType classifies payment audit entries.
type PaymentEventType string

const (
	PaymentEventEvidenceSubmitted PaymentEventType = "evidence_submitted"
	PaymentEventDecisionApplied   PaymentEventType = "decision_applied"
	PaymentEventDecisionDuplicate PaymentEventType = "decision_duplicate"
	PaymentEventDecisionFailed    PaymentEventType = "decision_failed"
	PaymentEventWebhookReceived   PaymentEventType = "webhook_received"
	PaymentEventWebhookInvalid    PaymentEventType = "webhook_invalid"
)

// PaymentEventSource identifies where a decision came from.
type PaymentEventSource string

const (
	PaymentSourceReviewer PaymentEventSource = "reviewer"
	PaymentSourceWebhook  PaymentEventSource = "webhook"
)

// PaymentAudit is an append-only record of every payment event. Decision
// deduplication is backed by this table: a replayed delivery with the same
// attempt id and decision finds its earlier non-duplicate entry.
type PaymentAudit struct {
	ID             uuid.UUID          `json:"id" db:"id"`
	AttemptID      *uuid.UUID         `json:"attempt_id,omitempty" db:"attempt_id"`
	BookingID      *uuid.UUID         `json:"booking_id,omitempty" db:"booking_id"`
	EventType      PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource    PaymentEventSource `json:"event_source" db:"event_source"`
	Decision       *string            `json:"decision,omitempty" db:"decision"`
	IdempotencyKey string             `json:"idempotency_key" db:"idempotency_key"`
	IsDuplicate    bool               `json:"is_duplicate" db:"is_duplicate"`
	ExpectedAmount *int64             `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *int64             `json:"received_amount,omitempty" db:"received_amount"`
	AmountsMatch   *bool              `json:"amounts_match,omitempty" db:"amounts_match"`
	ErrorMessage   *string            `json:"error_message,omitempty" db:"error_message"`
	IPAddress      *string            `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      *string            `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}

// DecisionRequest is the request body for POST /payments/:attempt_id/decision.
type DecisionRequest struct {
	Decision PaymentDecision `json:"decision" binding:"required,oneof=approved rejected"`
}

// WebhookPayload is the body an external payment notifier posts to the
// webhook endpoint. Amount is the transferred amount in minor units as seen
// by the bank integration; it is audited against the booking total.
type WebhookPayload struct {
	AttemptID string          `json:"attempt_id"`
	Decision  PaymentDecision `json:"decision"`
	Amount    *int64          `json:"amount,omitempty"`
	Reference string          `json:"reference,omitempty"`
}
