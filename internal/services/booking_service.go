package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/events"
	"github.com/ceylontrails/tours-backend/internal/models"
	"github.com/ceylontrails/tours-backend/pkg/catalog"
	"github.com/ceylontrails/tours-backend/pkg/reference"
	"github.com/ceylontrails/tours-backend/pkg/validator"
)

// Refund tiers by whole days between cancellation and departure.
const (
	FullRefundDays = 7
	HalfRefundDays = 3
)

// BookingStore is the subset of the booking repository the lifecycle
// service needs. Defined here so tests can substitute mocks.
type BookingStore interface {
	Create(booking *models.Booking) error
	GetByID(bookingID uuid.UUID) (*models.Booking, error)
	GetByReference(reference string) (*models.Booking, error)
	GetByIdempotencyKey(userID uuid.UUID, key string) (*models.Booking, error)
	ListByUser(userID uuid.UUID, limit, offset int) ([]models.Booking, error)
	CountActiveByUser(userID uuid.UUID) (int, error)
	ReferenceExists(ref string) (bool, error)
	MarkCancelled(bookingID uuid.UUID, reason string, refundAmount int64) error
	MarkExpired(bookingID uuid.UUID, now time.Time) (bool, error)
	ListExpiredDue(now time.Time, limit int) ([]models.Booking, error)
}

// DepartureLedger is the availability ledger surface the service uses.
type DepartureLedger interface {
	GetByID(departureID uuid.UUID) (*models.TourDeparture, error)
	Reserve(departureID uuid.UUID, seats int, tourDefaultCapacity int) (uuid.UUID, error)
	Release(token uuid.UUID) error
	GetReservation(token uuid.UUID) (*models.SeatReservation, error)
	ReleaseOrphanReservations() (int, error)
	SetOpen(departureID uuid.UUID, open bool) error
	BookedSeats(departureID uuid.UUID) (int, error)
}

// PaymentStore is the payment attempt surface the service uses. Submit and
// the two finalizers carry their booking transition in the same database
// transaction as the attempt write.
type PaymentStore interface {
	SubmitAttempt(bookingID uuid.UUID, amount int64) (*models.PaymentAttempt, error)
	GetAttemptByID(attemptID uuid.UUID) (*models.PaymentAttempt, error)
	Approve(attemptID uuid.UUID) error
	Reject(attemptID uuid.UUID) error
}

// BookingServiceConfig holds the lifecycle knobs.
type BookingServiceConfig struct {
	PaymentDeadline  time.Duration
	MaxActivePerUser int
	ReferenceRetries int
	Currency         string
}

// BookingService owns the booking lifecycle: creation with seat
// reservation, payment submission, verification outcomes, cancellation with
// refunds and expiry.
type BookingService struct {
	bookings  BookingStore
	ledger    DepartureLedger
	payments  PaymentStore
	catalog   catalog.Client
	pricing   *PricingService
	publisher events.Publisher
	phones    *validator.PhoneValidator
	config    BookingServiceConfig
	logger    *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookings BookingStore,
	ledger DepartureLedger,
	payments PaymentStore,
	catalogClient catalog.Client,
	pricing *PricingService,
	publisher events.Publisher,
	config BookingServiceConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		ledger:    ledger,
		payments:  payments,
		catalog:   catalogClient,
		pricing:   pricing,
		publisher: publisher,
		phones:    validator.NewPhoneValidator(),
		config:    config,
		logger:    logger,
	}
}

// QuoteForTour prices a tour without touching the ledger. The tour's base
// price comes from the catalog.
func (s *BookingService) QuoteForTour(ctx context.Context, req *models.QuoteRequest) (*models.Quote, error) {
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, models.NewValidationError("invalid start date", map[string]string{
			"start_date": "must be an ISO date like 2025-01-18",
		})
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, models.NewValidationError("invalid end date", map[string]string{
			"end_date": "must be an ISO date like 2025-01-20",
		})
	}

	tour, err := s.catalog.GetTour(ctx, req.TourID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tour: %w", err)
	}
	if tour == nil || !tour.IsActive {
		return nil, models.NewNotFoundError("tour not found")
	}

	return s.pricing.Quote(tour.BasePrice, startDate, endDate, req.TravelerCount)
}

// Create reserves seats and creates a booking in pending_payment. When the
// request carries an idempotency key the user already used, the earlier
// booking is returned instead of creating a duplicate.
func (s *BookingService) Create(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, err := s.bookings.GetByIdempotencyKey(userID, *req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	departureID, err := uuid.Parse(req.DepartureID)
	if err != nil {
		return nil, models.NewValidationError("invalid departure id", map[string]string{
			"departure_id": "must be a UUID",
		})
	}

	contactPhone, err := s.phones.Validate(req.Contact.Phone)
	if err != nil {
		return nil, models.NewValidationError("invalid contact phone", map[string]string{
			"contact.phone": err.Error(),
		})
	}

	departure, err := s.ledger.GetByID(departureID)
	if err != nil {
		return nil, err
	}
	if departure == nil {
		return nil, models.NewNotFoundError("departure not found")
	}
	if departure.TourID != req.TourID {
		return nil, models.NewValidationError("departure does not belong to tour", map[string]string{
			"departure_id": "belongs to a different tour",
		})
	}
	if !departure.IsOpen {
		return nil, models.NewConflictError("departure is closed for booking")
	}

	tour, err := s.catalog.GetTour(ctx, req.TourID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tour: %w", err)
	}
	if tour == nil || !tour.IsActive {
		return nil, models.NewNotFoundError("tour not found")
	}

	// A group larger than the whole departure can never fit, regardless of
	// current occupancy.
	if req.TravelerCount > departure.EffectiveCapacity(tour.MaxGroupSize) {
		return nil, models.NewCapacityExceededError("traveler count exceeds departure capacity")
	}

	active, err := s.bookings.CountActiveByUser(userID)
	if err != nil {
		return nil, err
	}
	if active >= s.config.MaxActivePerUser {
		return nil, models.NewConflictError(
			fmt.Sprintf("active booking limit of %d reached", s.config.MaxActivePerUser))
	}

	// Departure price overrides the catalog default when set.
	pricePerTraveler := tour.BasePrice
	if departure.BasePrice > 0 {
		pricePerTraveler = departure.BasePrice
	}

	quote, err := s.pricing.Quote(pricePerTraveler, departure.DepartDate, departure.DepartDate, req.TravelerCount)
	if err != nil {
		return nil, err
	}

	token, err := s.ledger.Reserve(departureID, req.TravelerCount, tour.MaxGroupSize)
	if err != nil {
		return nil, err
	}

	ref, err := s.uniqueReference()
	if err != nil {
		s.releaseQuietly(token, "reference generation failed")
		return nil, err
	}

	booking := &models.Booking{
		ID:               uuid.New(),
		Reference:        ref,
		UserID:           userID,
		TourID:           req.TourID,
		DepartureID:      departureID,
		ReservationToken: token,
		TravelerCount:    req.TravelerCount,
		ContactName:      req.Contact.Name,
		ContactEmail:     req.Contact.Email,
		ContactPhone:     contactPhone,
		BasePrice:        quote.BasePrice,
		Discount:         quote.Discount,
		TotalPrice:       quote.TotalPrice,
		Currency:         quote.Currency,
		Status:           models.BookingStatusPendingPayment,
		SpecialRequests:  req.SpecialRequests,
		PaymentDeadline:  time.Now().UTC().Add(s.config.PaymentDeadline),
		IdempotencyKey:   req.IdempotencyKey,
	}

	if err := s.bookings.Create(booking); err != nil {
		s.releaseQuietly(token, "booking insert failed")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  booking.Reference,
		"user_id":    userID,
		"tour_id":    req.TourID,
		"travelers":  req.TravelerCount,
	}).Info("Booking created")

	s.publish(ctx, events.EventBookingCreated, booking)
	return booking, nil
}

// Get returns a booking visible to the user. A booking owned by someone
// else is reported as not found rather than forbidden, so booking IDs leak
// nothing.
func (s *BookingService) Get(bookingID, userID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.UserID != userID {
		return nil, models.NewNotFoundError("booking not found")
	}
	return booking, nil
}

// GetByReference returns the user's booking by its human-facing reference,
// the identifier travelers quote in support conversations.
func (s *BookingService) GetByReference(reference string, userID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByReference(reference)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.UserID != userID {
		return nil, models.NewNotFoundError("booking not found")
	}
	return booking, nil
}

// List returns a page of the user's bookings, newest first.
func (s *BookingService) List(userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookings.ListByUser(userID, limit, offset)
}

// SubmitPayment records bank transfer evidence for a booking and moves it to
// pending_verification. The attempt amount is the booking total; the attempt
// insert and the booking transition commit together.
func (s *BookingService) SubmitPayment(ctx context.Context, bookingID, userID uuid.UUID) (*models.PaymentAttempt, error) {
	booking, err := s.Get(bookingID, userID)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanTransitionTo(models.BookingStatusPendingVerification) {
		return nil, models.NewInvalidTransitionError("booking is not awaiting payment")
	}
	if time.Now().UTC().After(booking.PaymentDeadline) {
		return nil, models.NewInvalidTransitionError("payment deadline has passed")
	}

	attempt, err := s.payments.SubmitAttempt(bookingID, booking.TotalPrice)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"attempt_id": attempt.ID,
		"amount":     attempt.Amount,
	}).Info("Payment evidence submitted")

	return attempt, nil
}

// ApproveAttempt confirms the booking behind an approved payment attempt.
// The attempt and booking move in one transaction.
func (s *BookingService) ApproveAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	if err := s.payments.Approve(attempt.ID); err != nil {
		return err
	}

	booking, err := s.bookings.GetByID(attempt.BookingID)
	if err == nil && booking != nil {
		s.publish(ctx, events.EventBookingConfirmed, booking)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": attempt.BookingID,
		"attempt_id": attempt.ID,
	}).Info("Booking confirmed")
	return nil
}

// RejectAttempt returns the booking to pending_payment so the traveler can
// retry. Seats stay reserved and the original payment deadline still applies.
func (s *BookingService) RejectAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	if err := s.payments.Reject(attempt.ID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": attempt.BookingID,
		"attempt_id": attempt.ID,
	}).Info("Payment attempt rejected, booking returned to pending payment")
	return nil
}

// Cancel cancels the user's booking, computes the refund from the departure
// date, and releases the held seats.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID uuid.UUID, reason string) (*models.Booking, error) {
	booking, err := s.Get(bookingID, userID)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanTransitionTo(models.BookingStatusCancelled) {
		return nil, models.NewInvalidTransitionError("booking can no longer be cancelled")
	}

	departure, err := s.ledger.GetByID(booking.DepartureID)
	if err != nil {
		return nil, err
	}
	if departure == nil {
		return nil, fmt.Errorf("departure %s missing for booking %s", booking.DepartureID, booking.ID)
	}

	refund := RefundAmount(booking.TotalPrice, departure.DepartDate, time.Now().UTC())

	if err := s.bookings.MarkCancelled(bookingID, reason, refund); err != nil {
		return nil, err
	}

	if err := s.ledger.Release(booking.ReservationToken); err != nil {
		// Seats stay held until the reconciliation sweep catches them.
		s.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to release seats on cancellation")
	}

	booking, err = s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"refund":     refund,
	}).Info("Booking cancelled")

	s.publish(ctx, events.EventBookingCancelled, booking)
	return booking, nil
}

// Expire expires one overdue booking and releases its seats. The guarded
// update makes the race against a last-second payment safe: when another
// writer moved the booking first, nothing happens.
func (s *BookingService) Expire(ctx context.Context, booking *models.Booking, now time.Time) (bool, error) {
	if booking.Status.IsTerminal() {
		return false, nil
	}

	expired, err := s.bookings.MarkExpired(booking.ID, now)
	if err != nil {
		return false, err
	}
	if !expired {
		return false, nil
	}

	if err := s.ledger.Release(booking.ReservationToken); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to release seats on expiry")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  booking.Reference,
	}).Info("Booking expired")

	s.publish(ctx, events.EventBookingExpired, booking)
	return true, nil
}

// SetDepartureOpen closes or reopens a departure for new bookings. Existing
// bookings on a closed departure are untouched.
func (s *BookingService) SetDepartureOpen(departureID uuid.UUID, open bool) error {
	if err := s.ledger.SetOpen(departureID, open); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"departure_id": departureID,
		"open":         open,
	}).Info("Departure availability updated")
	return nil
}

// DepartureSeats reports the current booked seat counter for a departure.
func (s *BookingService) DepartureSeats(departureID uuid.UUID) (int, error) {
	return s.ledger.BookedSeats(departureID)
}

// Reservation looks up a seat reservation by token, for support tooling
// checking whether a hold was returned.
func (s *BookingService) Reservation(token uuid.UUID) (*models.SeatReservation, error) {
	res, err := s.ledger.GetReservation(token)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, models.NewNotFoundError("reservation not found")
	}
	return res, nil
}

// SweepExpired expires a batch of overdue bookings and reconciles any orphan
// reservations. Returns the number of bookings expired.
func (s *BookingService) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	now := time.Now().UTC()
	due, err := s.bookings.ListExpiredDue(now, batchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range due {
		expired, err := s.Expire(ctx, &due[i], now)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", due[i].ID).Error("Failed to expire booking")
			continue
		}
		if expired {
			count++
		}
	}

	if orphans, err := s.ledger.ReleaseOrphanReservations(); err != nil {
		s.logger.WithError(err).Error("Orphan reservation reconciliation failed")
	} else if orphans > 0 {
		s.logger.WithField("count", orphans).Warn("Released orphan seat reservations")
	}

	return count, nil
}

// RefundPercentage returns the refund tier for a cancellation: 100% at
// FullRefundDays or more whole days before departure, 50% at HalfRefundDays
// or more, otherwise nothing. Days are whole UTC calendar days.
func RefundPercentage(departDate, now time.Time) int {
	days := daysUntil(departDate, now)
	switch {
	case days >= FullRefundDays:
		return 100
	case days >= HalfRefundDays:
		return 50
	default:
		return 0
	}
}

// RefundAmount applies the refund tier to the booking total, rounding half up.
func RefundAmount(totalPrice int64, departDate, now time.Time) int64 {
	pct := RefundPercentage(departDate, now)
	return (totalPrice*int64(pct) + 50) / 100
}

func daysUntil(departDate, now time.Time) int {
	depart := truncateToUTCDate(departDate)
	today := truncateToUTCDate(now)
	return int(depart.Sub(today).Hours() / 24)
}

func truncateToUTCDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *BookingService) uniqueReference() (string, error) {
	retries := s.config.ReferenceRetries
	if retries < 1 {
		retries = 5
	}
	for i := 0; i < retries; i++ {
		ref, err := reference.New()
		if err != nil {
			return "", err
		}
		exists, err := s.bookings.ReferenceExists(ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", fmt.Errorf("failed to find an unused booking reference after %d attempts", retries)
}

func (s *BookingService) releaseQuietly(token uuid.UUID, context string) {
	if err := s.ledger.Release(token); err != nil {
		s.logger.WithError(err).WithField("token", token).Errorf("Failed to release reservation after %s", context)
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *models.Booking) {
	err := s.publisher.Publish(ctx, events.BookingEvent{
		Type:          eventType,
		BookingID:     booking.ID.String(),
		Reference:     booking.Reference,
		UserID:        booking.UserID.String(),
		TourID:        booking.TourID,
		DepartureID:   booking.DepartureID.String(),
		TravelerCount: booking.TravelerCount,
		TotalPrice:    booking.TotalPrice,
		Currency:      booking.Currency,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"type":       eventType,
			"booking_id": booking.ID,
		}).Warn("Failed to publish booking event")
	}
}
