package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/models"
	"github.com/ceylontrails/tours-backend/internal/services"
)

// PaymentHandler handles payment verification endpoints
type PaymentHandler struct {
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// Decide applies a reviewer verdict to a payment attempt
// @Summary Decide a payment attempt
// @Description Approve or reject a payment attempt under review
// @Tags Payments
// @Accept json
// @Produce json
// @Param attempt_id path string true "Payment attempt ID"
// @Param request body models.DecisionRequest true "Verdict"
// @Success 200 {object} map[string]interface{} "Decision applied or duplicate acknowledged"
// @Failure 404 {object} map[string]interface{} "Attempt not found"
// @Failure 409 {object} map[string]interface{} "Conflicting verdict"
// @Security BearerAuth
// @Router /api/v1/payments/{attempt_id}/decision [post]
func (h *PaymentHandler) Decide(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid attempt ID"})
		return
	}

	var req models.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	meta := services.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	attempt, duplicate, err := h.paymentService.Decide(
		c.Request.Context(), attemptID, req.Decision, models.PaymentSourceReviewer, meta)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt":   attempt,
		"duplicate": duplicate,
	})
}

// Webhook receives bank notifier deliveries
// @Summary Payment webhook
// @Description Receive a signed payment notification. Always returns 200 for
// authenticated deliveries so the notifier stops retrying; failures are
// recorded in the audit trail.
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Delivery accepted"
// @Failure 401 {object} map[string]interface{} "Bad signature"
// @Router /api/v1/payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	if !h.paymentService.WebhookEnabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Webhook is not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	signature := c.GetHeader("X-Signature")
	if !h.paymentService.VerifySignature(body, signature) {
		h.logger.WithField("ip", c.ClientIP()).Warn("Webhook delivery with bad signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	meta := services.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), &payload, meta); err != nil {
		// The delivery is acknowledged either way; the audit trail holds
		// the failure and retrying would not change the outcome.
		h.logger.WithError(err).WithField("attempt_id", payload.AttemptID).Warn("Webhook processing failed")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
