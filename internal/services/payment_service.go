package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/database"
	"github.com/ceylontrails/tours-backend/internal/models"
)

// AuditTrail is the payment audit surface the gateway uses.
type AuditTrail interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	CheckDuplicate(ctx context.Context, attemptID uuid.UUID, decision models.PaymentDecision) (bool, error)
	GetByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*models.PaymentAudit, error)
	GetAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error)
}

// BookingLifecycle is how decisions reach the booking state machine.
type BookingLifecycle interface {
	ApproveAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	RejectAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
}

// RequestMeta carries caller details into the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// PaymentService is the verification gateway: it applies reviewer and
// webhook decisions to payment attempts exactly once, auditing every
// delivery including replays.
type PaymentService struct {
	payments      PaymentStore
	audit         AuditTrail
	lifecycle     BookingLifecycle
	webhookSecret string
	logger        *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	payments PaymentStore,
	audit AuditTrail,
	lifecycle BookingLifecycle,
	webhookSecret string,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		payments:      payments,
		audit:         audit,
		lifecycle:     lifecycle,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Decide applies a verdict to a payment attempt. A replayed delivery of the
// same verdict is acknowledged as a duplicate without touching state; a
// conflicting verdict on an already-decided attempt is a conflict.
func (s *PaymentService) Decide(
	ctx context.Context,
	attemptID uuid.UUID,
	decision models.PaymentDecision,
	source models.PaymentEventSource,
	meta RequestMeta,
) (*models.PaymentAttempt, bool, error) {
	attempt, err := s.payments.GetAttemptByID(attemptID)
	if err != nil {
		return nil, false, err
	}
	if attempt == nil {
		return nil, false, models.NewNotFoundError("payment attempt not found")
	}

	duplicate, err := s.audit.CheckDuplicate(ctx, attemptID, decision)
	if err != nil {
		return nil, false, err
	}
	if duplicate {
		s.logAudit(ctx, attempt, decision, source, meta, models.PaymentEventDecisionDuplicate, true, nil)
		s.logger.WithFields(logrus.Fields{
			"attempt_id": attemptID,
			"decision":   decision,
			"source":     source,
		}).Info("Duplicate payment decision acknowledged")
		return attempt, true, nil
	}

	if attempt.Status != models.PaymentStatusPendingVerify {
		err := models.NewConflictError("payment attempt was already decided differently")
		s.logAudit(ctx, attempt, decision, source, meta, models.PaymentEventDecisionFailed, false, err)
		return nil, false, err
	}

	switch decision {
	case models.DecisionApproved:
		err = s.lifecycle.ApproveAttempt(ctx, attempt)
	case models.DecisionRejected:
		err = s.lifecycle.RejectAttempt(ctx, attempt)
	default:
		err = models.NewValidationError("invalid decision", map[string]string{
			"decision": "must be approved or rejected",
		})
	}
	if err != nil {
		s.logAudit(ctx, attempt, decision, source, meta, models.PaymentEventDecisionFailed, false, err)
		return nil, false, err
	}

	s.logAudit(ctx, attempt, decision, source, meta, models.PaymentEventDecisionApplied, false, nil)

	attempt, err = s.payments.GetAttemptByID(attemptID)
	if err != nil {
		return nil, false, err
	}
	return attempt, false, nil
}

// AttemptAudits returns the full audit trail for one payment attempt.
func (s *PaymentService) AttemptAudits(ctx context.Context, attemptID uuid.UUID) ([]*models.PaymentAudit, error) {
	return s.audit.GetByAttemptID(ctx, attemptID)
}

// AmountMismatches returns recent deliveries whose transferred amount did not
// match the booking total, for fraud review.
func (s *PaymentService) AmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.audit.GetAmountMismatches(ctx, limit)
}

// WebhookEnabled reports whether the webhook endpoint accepts deliveries.
func (s *PaymentService) WebhookEnabled() bool {
	return s.webhookSecret != ""
}

// VerifySignature checks the HMAC-SHA256 signature over the raw webhook
// body, hex encoded in the X-Signature header.
func (s *PaymentService) VerifySignature(body []byte, signature string) bool {
	if s.webhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleWebhook processes a verified webhook delivery. The transferred
// amount, when present, is audited against the attempt's expected amount; a
// mismatch is recorded but the decision still stands, review of mismatches
// happens out of band.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload *models.WebhookPayload, meta RequestMeta) error {
	attemptID, err := uuid.Parse(payload.AttemptID)
	if err != nil {
		s.auditInvalidWebhook(ctx, payload, meta, "attempt_id is not a UUID")
		return models.NewValidationError("invalid attempt id", map[string]string{
			"attempt_id": "must be a UUID",
		})
	}

	attempt, err := s.payments.GetAttemptByID(attemptID)
	if err != nil {
		return err
	}
	if attempt == nil {
		s.auditInvalidWebhook(ctx, payload, meta, "unknown attempt")
		return models.NewNotFoundError("payment attempt not found")
	}

	audit := &models.PaymentAudit{
		AttemptID:      &attempt.ID,
		BookingID:      &attempt.BookingID,
		EventType:      models.PaymentEventWebhookReceived,
		EventSource:    models.PaymentSourceWebhook,
		IdempotencyKey: database.DecisionIdempotencyKey(attempt.ID, payload.Decision),
		ExpectedAmount: &attempt.Amount,
		ReceivedAmount: payload.Amount,
		IPAddress:      optional(meta.IPAddress),
		UserAgent:      optional(meta.UserAgent),
	}
	if payload.Amount != nil {
		match := *payload.Amount == attempt.Amount
		audit.AmountsMatch = &match
		if !match {
			s.logger.WithFields(logrus.Fields{
				"attempt_id": attempt.ID,
				"expected":   attempt.Amount,
				"received":   *payload.Amount,
			}).Warn("Webhook amount does not match payment attempt")
		}
	}
	if err := s.audit.Log(ctx, audit); err != nil {
		return err
	}

	_, _, err = s.Decide(ctx, attemptID, payload.Decision, models.PaymentSourceWebhook, meta)
	return err
}

func (s *PaymentService) logAudit(
	ctx context.Context,
	attempt *models.PaymentAttempt,
	decision models.PaymentDecision,
	source models.PaymentEventSource,
	meta RequestMeta,
	eventType models.PaymentEventType,
	isDuplicate bool,
	cause error,
) {
	d := string(decision)
	audit := &models.PaymentAudit{
		AttemptID:      &attempt.ID,
		BookingID:      &attempt.BookingID,
		EventType:      eventType,
		EventSource:    source,
		Decision:       &d,
		IdempotencyKey: database.DecisionIdempotencyKey(attempt.ID, decision),
		IsDuplicate:    isDuplicate,
		ExpectedAmount: &attempt.Amount,
		IPAddress:      optional(meta.IPAddress),
		UserAgent:      optional(meta.UserAgent),
	}
	if cause != nil {
		msg := cause.Error()
		audit.ErrorMessage = &msg
	}
	if err := s.audit.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithField("attempt_id", attempt.ID).Error("Failed to write payment audit entry")
	}
}

func (s *PaymentService) auditInvalidWebhook(ctx context.Context, payload *models.WebhookPayload, meta RequestMeta, reason string) {
	audit := &models.PaymentAudit{
		EventType:      models.PaymentEventWebhookInvalid,
		EventSource:    models.PaymentSourceWebhook,
		IdempotencyKey: uuid.NewString(),
		ErrorMessage:   &reason,
		ReceivedAmount: payload.Amount,
		IPAddress:      optional(meta.IPAddress),
		UserAgent:      optional(meta.UserAgent),
	}
	if err := s.audit.Log(ctx, audit); err != nil {
		s.logger.WithError(err).Error("Failed to write payment audit entry")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
