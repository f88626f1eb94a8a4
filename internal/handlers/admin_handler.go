package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/models"
	"github.com/ceylontrails/tours-backend/internal/services"
)

// AdminHandler handles operational endpoints: departure availability,
// payment audit review and the expiry sweep.
type AdminHandler struct {
	bookingService *services.BookingService
	paymentService *services.PaymentService
	sweepService   *services.SweepService
	logger         *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	bookingService *services.BookingService,
	paymentService *services.PaymentService,
	sweepService *services.SweepService,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		bookingService: bookingService,
		paymentService: paymentService,
		sweepService:   sweepService,
		logger:         logger,
	}
}

// SetDepartureOpen closes or reopens a departure for new bookings
// @Summary Open or close a departure
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Departure ID"
// @Param request body models.SetDepartureOpenRequest true "Open flag"
// @Success 200 {object} map[string]interface{} "Departure updated"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Security BearerAuth
// @Router /api/v1/admin/departures/{id}/open [patch]
func (h *AdminHandler) SetDepartureOpen(c *gin.Context) {
	departureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid departure ID"})
		return
	}

	var req models.SetDepartureOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.bookingService.SetDepartureOpen(departureID, *req.Open); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"departure_id": departureID,
		"open":         *req.Open,
	})
}

// DepartureSeats reports the booked seat counter for a departure
// @Summary Get booked seats
// @Tags Admin
// @Produce json
// @Param id path string true "Departure ID"
// @Success 200 {object} map[string]interface{} "Seat counter"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Security BearerAuth
// @Router /api/v1/admin/departures/{id}/seats [get]
func (h *AdminHandler) DepartureSeats(c *gin.Context) {
	departureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid departure ID"})
		return
	}

	booked, err := h.bookingService.DepartureSeats(departureID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"departure_id": departureID,
		"booked_seats": booked,
	})
}

// GetReservation looks up a seat reservation by token
// @Summary Get a seat reservation
// @Tags Admin
// @Produce json
// @Param token path string true "Reservation token"
// @Success 200 {object} models.SeatReservation "Reservation"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Security BearerAuth
// @Router /api/v1/admin/reservations/{token} [get]
func (h *AdminHandler) GetReservation(c *gin.Context) {
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reservation token"})
		return
	}

	reservation, err := h.bookingService.Reservation(token)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// AttemptAudits returns the audit trail for a payment attempt
// @Summary List payment attempt audits
// @Tags Admin
// @Produce json
// @Param attempt_id path string true "Payment attempt ID"
// @Success 200 {object} map[string]interface{} "Audit entries"
// @Security BearerAuth
// @Router /api/v1/admin/payments/{attempt_id}/audits [get]
func (h *AdminHandler) AttemptAudits(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid attempt ID"})
		return
	}

	audits, err := h.paymentService.AttemptAudits(c.Request.Context(), attemptID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"audits": audits,
		"count":  len(audits),
	})
}

// AmountMismatches returns recent amount-mismatch deliveries
// @Summary List amount mismatches
// @Description Deliveries whose transferred amount did not match the booking total
// @Tags Admin
// @Produce json
// @Param limit query int false "Maximum entries (default 50, max 200)"
// @Success 200 {object} map[string]interface{} "Audit entries"
// @Security BearerAuth
// @Router /api/v1/admin/payments/mismatches [get]
func (h *AdminHandler) AmountMismatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	audits, err := h.paymentService.AmountMismatches(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"audits": audits,
		"count":  len(audits),
	})
}

// RunSweep triggers one expiry sweep cycle
// @Summary Run the expiry sweep
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Sweep result"
// @Security BearerAuth
// @Router /api/v1/admin/sweep/run [post]
func (h *AdminHandler) RunSweep(c *gin.Context) {
	expired := h.sweepService.RunOnce()
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

// SweepStatus reports expiry sweep statistics
// @Summary Sweep status
// @Tags Admin
// @Produce json
// @Success 200 {object} services.SweepStatus "Sweep statistics"
// @Security BearerAuth
// @Router /api/v1/admin/sweep/status [get]
func (h *AdminHandler) SweepStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sweepService.Status())
}
