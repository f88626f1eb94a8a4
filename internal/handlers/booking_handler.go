package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/middleware"
	"github.com/ceylontrails/tours-backend/internal/models"
	"github.com/ceylontrails/tours-backend/internal/services"
)

// BookingHandler handles quote and booking lifecycle endpoints
type BookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		logger:         logger,
	}
}

// Quote computes a non-binding price for a tour
// @Summary Get a price quote
// @Description Compute a non-binding quote for a tour and group size
// @Tags Quotes
// @Accept json
// @Produce json
// @Param request body models.QuoteRequest true "Quote request"
// @Success 200 {object} models.Quote "Quote computed"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Router /api/v1/quote [post]
func (h *BookingHandler) Quote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	quote, err := h.bookingService.QuoteForTour(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// Create creates a new booking
// @Summary Create a booking
// @Description Reserve seats on a departure and create a booking awaiting payment
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.Booking "Booking created"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 409 {object} map[string]interface{} "No capacity or booking limit reached"
// @Security BearerAuth
// @Router /api/v1/bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookingService.Create(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// List returns the user's bookings
// @Summary List my bookings
// @Tags Bookings
// @Produce json
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]interface{} "Bookings"
// @Security BearerAuth
// @Router /api/v1/bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.bookingService.List(userCtx.UserID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// Get returns one booking owned by the user
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.Booking "Booking"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Security BearerAuth
// @Router /api/v1/bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := h.bookingService.Get(bookingID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetByReference returns one booking looked up by its human-readable reference
// @Summary Get a booking by reference
// @Tags Bookings
// @Produce json
// @Param reference path string true "Booking reference"
// @Success 200 {object} models.Booking "Booking"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Security BearerAuth
// @Router /api/v1/bookings/reference/{reference} [get]
func (h *BookingHandler) GetByReference(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	booking, err := h.bookingService.GetByReference(c.Param("reference"), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// Cancel cancels a booking and reports the refund
// @Summary Cancel a booking
// @Description Cancel a booking, release its seats and compute the refund
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.CancelBookingRequest true "Cancellation reason"
// @Success 200 {object} models.Booking "Booking cancelled"
// @Failure 400 {object} map[string]interface{} "Already finalized"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/cancel [patch]
func (h *BookingHandler) Cancel(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	var req models.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookingService.Cancel(c.Request.Context(), bookingID, userCtx.UserID, req.Reason)
	if err != nil {
		// Cancelling a finalized booking is a client mistake, not a race.
		respondErrorWith(c, h.logger, err, map[models.ErrorKind]int{
			models.ErrKindInvalidStateTransition: http.StatusBadRequest,
		})
		return
	}

	c.JSON(http.StatusOK, booking)
}

// SubmitPayment records payment evidence for a booking
// @Summary Submit payment evidence
// @Description Record a bank transfer claim and move the booking under review
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 201 {object} models.PaymentAttempt "Attempt created"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Failure 409 {object} map[string]interface{} "Attempt already under review"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/payment [post]
func (h *BookingHandler) SubmitPayment(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	attempt, err := h.bookingService.SubmitPayment(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		respondErrorWith(c, h.logger, err, map[models.ErrorKind]int{
			models.ErrKindInvalidStateTransition: http.StatusBadRequest,
		})
		return
	}

	c.JSON(http.StatusCreated, attempt)
}
