package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ceylontrails/tours-backend/internal/events"
	"github.com/ceylontrails/tours-backend/internal/models"
)

// Mock structures

type MockBookingStore struct {
	mock.Mock
}

func (m *MockBookingStore) Create(booking *models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

func (m *MockBookingStore) GetByID(bookingID uuid.UUID) (*models.Booking, error) {
	args := m.Called(bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingStore) GetByReference(reference string) (*models.Booking, error) {
	args := m.Called(reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingStore) GetByIdempotencyKey(userID uuid.UUID, key string) (*models.Booking, error) {
	args := m.Called(userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingStore) ListByUser(userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	args := m.Called(userID, limit, offset)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingStore) CountActiveByUser(userID uuid.UUID) (int, error) {
	args := m.Called(userID)
	return args.Int(0), args.Error(1)
}

func (m *MockBookingStore) ReferenceExists(ref string) (bool, error) {
	args := m.Called(ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingStore) MarkCancelled(bookingID uuid.UUID, reason string, refundAmount int64) error {
	args := m.Called(bookingID, reason, refundAmount)
	return args.Error(0)
}

func (m *MockBookingStore) MarkExpired(bookingID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(bookingID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingStore) ListExpiredDue(now time.Time, limit int) ([]models.Booking, error) {
	args := m.Called(now, limit)
	return args.Get(0).([]models.Booking), args.Error(1)
}

type MockDepartureLedger struct {
	mock.Mock
}

func (m *MockDepartureLedger) GetByID(departureID uuid.UUID) (*models.TourDeparture, error) {
	args := m.Called(departureID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TourDeparture), args.Error(1)
}

func (m *MockDepartureLedger) Reserve(departureID uuid.UUID, seats int, tourDefaultCapacity int) (uuid.UUID, error) {
	args := m.Called(departureID, seats, tourDefaultCapacity)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockDepartureLedger) Release(token uuid.UUID) error {
	args := m.Called(token)
	return args.Error(0)
}

func (m *MockDepartureLedger) GetReservation(token uuid.UUID) (*models.SeatReservation, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SeatReservation), args.Error(1)
}

func (m *MockDepartureLedger) ReleaseOrphanReservations() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *MockDepartureLedger) SetOpen(departureID uuid.UUID, open bool) error {
	args := m.Called(departureID, open)
	return args.Error(0)
}

func (m *MockDepartureLedger) BookedSeats(departureID uuid.UUID) (int, error) {
	args := m.Called(departureID)
	return args.Int(0), args.Error(1)
}

type MockPaymentStore struct {
	mock.Mock
}

func (m *MockPaymentStore) SubmitAttempt(bookingID uuid.UUID, amount int64) (*models.PaymentAttempt, error) {
	args := m.Called(bookingID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentStore) GetAttemptByID(attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	args := m.Called(attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentStore) Approve(attemptID uuid.UUID) error {
	args := m.Called(attemptID)
	return args.Error(0)
}

func (m *MockPaymentStore) Reject(attemptID uuid.UUID) error {
	args := m.Called(attemptID)
	return args.Error(0)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	args := m.Called(ctx, tourID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tour), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.BookingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type bookingServiceFixture struct {
	bookings  *MockBookingStore
	ledger    *MockDepartureLedger
	payments  *MockPaymentStore
	catalog   *MockCatalog
	publisher *MockPublisher
	service   *BookingService
}

func newBookingServiceFixture() *bookingServiceFixture {
	f := &bookingServiceFixture{
		bookings:  new(MockBookingStore),
		ledger:    new(MockDepartureLedger),
		payments:  new(MockPaymentStore),
		catalog:   new(MockCatalog),
		publisher: new(MockPublisher),
	}
	f.service = NewBookingService(
		f.bookings, f.ledger, f.payments, f.catalog,
		NewPricingService("USD", newTestLogger()),
		f.publisher,
		BookingServiceConfig{
			PaymentDeadline:  time.Hour,
			MaxActivePerUser: 5,
			ReferenceRetries: 5,
			Currency:         "USD",
		},
		newTestLogger(),
	)
	return f
}

func testTour() *models.Tour {
	return &models.Tour{
		ID:           "tour-ella-trek",
		Name:         "Ella Rock Trek",
		BasePrice:    5000,
		MaxGroupSize: 12,
		IsActive:     true,
	}
}

func testDeparture(id uuid.UUID, departDate time.Time) *models.TourDeparture {
	return &models.TourDeparture{
		ID:          id,
		TourID:      "tour-ella-trek",
		DepartDate:  departDate,
		BookedSeats: 0,
		IsOpen:      true,
	}
}

func createRequest(departureID uuid.UUID) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		TourID:        "tour-ella-trek",
		DepartureID:   departureID.String(),
		TravelerCount: 2,
		Contact: models.ContactInfo{
			Name:  "Nimal Perera",
			Email: "nimal@example.com",
			Phone: "+94771234567",
		},
	}
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	departureID := uuid.New()
	// A Saturday departure, so the weekend discount applies
	departDate := date("2025-01-18")

	t.Run("Success", func(t *testing.T) {
		f := newBookingServiceFixture()
		token := uuid.New()

		f.ledger.On("GetByID", departureID).Return(testDeparture(departureID, departDate), nil)
		f.catalog.On("GetTour", ctx, "tour-ella-trek").Return(testTour(), nil)
		f.bookings.On("CountActiveByUser", userID).Return(0, nil)
		f.ledger.On("Reserve", departureID, 2, 12).Return(token, nil)
		f.bookings.On("ReferenceExists", mock.Anything).Return(false, nil)
		f.bookings.On("Create", mock.Anything).Return(nil)
		f.publisher.On("Publish", ctx, mock.Anything).Return(nil)

		booking, err := f.service.Create(ctx, userID, createRequest(departureID))
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusPendingPayment, booking.Status)
		assert.Equal(t, token, booking.ReservationToken)
		assert.Equal(t, int64(10000), booking.BasePrice)
		assert.Equal(t, int64(500), booking.Discount)
		assert.Equal(t, int64(9500), booking.TotalPrice)
		assert.True(t, time.Now().UTC().Before(booking.PaymentDeadline))

		f.ledger.AssertExpectations(t)
		f.bookings.AssertExpectations(t)
		f.publisher.AssertCalled(t, "Publish", ctx, mock.MatchedBy(func(e events.BookingEvent) bool {
			return e.Type == events.EventBookingCreated
		}))
	})

	t.Run("Group Larger Than Departure Capacity", func(t *testing.T) {
		f := newBookingServiceFixture()

		f.ledger.On("GetByID", departureID).Return(testDeparture(departureID, departDate), nil)
		f.catalog.On("GetTour", ctx, "tour-ella-trek").Return(testTour(), nil)

		req := createRequest(departureID)
		req.TravelerCount = 13 // tour default group size is 12

		booking, err := f.service.Create(ctx, userID, req)
		assert.Nil(t, booking)
		assert.True(t, models.IsKind(err, models.ErrKindCapacityExceeded))
		f.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Capacity Override Bounds The Group", func(t *testing.T) {
		f := newBookingServiceFixture()
		small := testDeparture(departureID, departDate)
		override := 4
		small.MaxCapacityOverride = &override

		f.ledger.On("GetByID", departureID).Return(small, nil)
		f.catalog.On("GetTour", ctx, "tour-ella-trek").Return(testTour(), nil)

		req := createRequest(departureID)
		req.TravelerCount = 5

		booking, err := f.service.Create(ctx, userID, req)
		assert.Nil(t, booking)
		assert.True(t, models.IsKind(err, models.ErrKindCapacityExceeded))
		f.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Capacity Exceeded Creates Nothing", func(t *testing.T) {
		f := newBookingServiceFixture()

		f.ledger.On("GetByID", departureID).Return(testDeparture(departureID, departDate), nil)
		f.catalog.On("GetTour", ctx, "tour-ella-trek").Return(testTour(), nil)
		f.bookings.On("CountActiveByUser", userID).Return(0, nil)
		f.ledger.On("Reserve", departureID, 2, 12).
			Return(uuid.Nil, models.NewCapacityExceededError("not enough seats available on this departure"))

		booking, err := f.service.Create(ctx, userID, createRequest(departureID))
		assert.Nil(t, booking)
		assert.True(t, models.IsKind(err, models.ErrKindCapacityExceeded))
		f.bookings.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("Insert Failure Releases Reservation", func(t *testing.T) {
		f := newBookingServiceFixture()
		token := uuid.New()

		f.ledger.On("GetByID", departureID).Return(testDeparture(departureID, departDate), nil)
		f.catalog.On("GetTour", ctx, "tour-ella-trek").Return(testTour(), nil)
		f.bookings.On("CountActiveByUser", userID).Return(0, nil)
		f.ledger.On("Reserve", departureID, 2, 12).Return(token, nil)
		f.bookings.On("ReferenceExists", mock.Anything).Return(false, nil)
		f.bookings.On("Create", mock.Anything).Return(fmt.Errorf("database error"))
		f.ledger.On("Release", token).Return(nil)

		booking, err := f.service.Create(ctx, userID, createRequest(departureID))
		assert.Nil(t, booking)
		assert.Error(t, err)
		f.ledger.AssertCalled(t, "Release", token)
	})

	t.Run("Idempotency Key Returns Earlier Booking", func(t *testing.T) {
		f := newBookingServiceFixture()
		key := "retry-key-1"
		existing := &models.Booking{ID: uuid.New(), UserID: userID, Status: models.BookingStatusPendingPayment}

		f.bookings.On("GetByIdempotencyKey", userID, key).Return(existing, nil)

		req := createRequest(departureID)
		req.IdempotencyKey = &key

		booking, err := f.service.Create(ctx, userID, req)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, booking.ID)
		f.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Active Booking Limit Reached", func(t *testing.T) {
		f := newBookingServiceFixture()

		f.ledger.On("GetByID", departureID).Return(testDeparture(departureID, departDate), nil)
		f.catalog.On("GetTour", ctx, "tour-ella-trek").Return(testTour(), nil)
		f.bookings.On("CountActiveByUser", userID).Return(5, nil)

		booking, err := f.service.Create(ctx, userID, createRequest(departureID))
		assert.Nil(t, booking)
		assert.True(t, models.IsKind(err, models.ErrKindConflict))
	})

	t.Run("Closed Departure", func(t *testing.T) {
		f := newBookingServiceFixture()
		closed := testDeparture(departureID, departDate)
		closed.IsOpen = false

		f.ledger.On("GetByID", departureID).Return(closed, nil)

		booking, err := f.service.Create(ctx, userID, createRequest(departureID))
		assert.Nil(t, booking)
		assert.True(t, models.IsKind(err, models.ErrKindConflict))
	})
}

func TestGetHidesOtherUsersBookings(t *testing.T) {
	f := newBookingServiceFixture()
	bookingID := uuid.New()
	owner := uuid.New()
	other := uuid.New()

	f.bookings.On("GetByID", bookingID).Return(&models.Booking{ID: bookingID, UserID: owner}, nil)

	booking, err := f.service.Get(bookingID, other)
	assert.Nil(t, booking)
	assert.True(t, models.IsKind(err, models.ErrKindNotFound))
}

func TestCancelComputesRefundAndReleasesSeats(t *testing.T) {
	ctx := context.Background()
	f := newBookingServiceFixture()
	userID := uuid.New()
	bookingID := uuid.New()
	departureID := uuid.New()
	token := uuid.New()

	booking := &models.Booking{
		ID:               bookingID,
		UserID:           userID,
		DepartureID:      departureID,
		ReservationToken: token,
		TotalPrice:       9500,
		Status:           models.BookingStatusPendingVerification,
	}
	cancelled := *booking
	cancelled.Status = models.BookingStatusCancelled

	// Departure 10 days out: full refund tier
	departDate := time.Now().UTC().AddDate(0, 0, 10)

	f.bookings.On("GetByID", bookingID).Return(booking, nil).Once()
	f.ledger.On("GetByID", departureID).Return(testDeparture(departureID, departDate), nil)
	f.bookings.On("MarkCancelled", bookingID, "change of plans", int64(9500)).Return(nil)
	f.ledger.On("Release", token).Return(nil)
	f.bookings.On("GetByID", bookingID).Return(&cancelled, nil)
	f.publisher.On("Publish", ctx, mock.Anything).Return(nil)

	result, err := f.service.Cancel(ctx, bookingID, userID, "change of plans")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, result.Status)
	f.ledger.AssertCalled(t, "Release", token)
}

func TestCancelRejectsFinalizedBookings(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	for _, status := range []models.BookingStatus{
		models.BookingStatusConfirmed,
		models.BookingStatusCancelled,
		models.BookingStatusExpired,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newBookingServiceFixture()
			bookingID := uuid.New()

			f.bookings.On("GetByID", bookingID).Return(&models.Booking{
				ID:     bookingID,
				UserID: userID,
				Status: status,
			}, nil)

			booking, err := f.service.Cancel(ctx, bookingID, userID, "change of plans")
			assert.Nil(t, booking)
			assert.True(t, models.IsKind(err, models.ErrKindInvalidStateTransition))
			f.bookings.AssertNotCalled(t, "MarkCancelled", mock.Anything, mock.Anything, mock.Anything)
			f.ledger.AssertNotCalled(t, "Release", mock.Anything)
		})
	}
}

func TestExpireRacedByPaymentIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newBookingServiceFixture()
	now := time.Now().UTC()
	booking := &models.Booking{
		ID:               uuid.New(),
		ReservationToken: uuid.New(),
		Status:           models.BookingStatusPendingPayment,
	}

	f.bookings.On("MarkExpired", booking.ID, now).Return(false, nil)

	expired, err := f.service.Expire(ctx, booking, now)
	require.NoError(t, err)
	assert.False(t, expired)
	f.ledger.AssertNotCalled(t, "Release", mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestExpireSkipsFinalizedBookings(t *testing.T) {
	ctx := context.Background()
	f := newBookingServiceFixture()
	booking := &models.Booking{
		ID:               uuid.New(),
		ReservationToken: uuid.New(),
		Status:           models.BookingStatusConfirmed,
	}

	expired, err := f.service.Expire(ctx, booking, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, expired)
	f.bookings.AssertNotCalled(t, "MarkExpired", mock.Anything, mock.Anything)
}

func TestSubmitPaymentRequiresPendingPayment(t *testing.T) {
	ctx := context.Background()
	f := newBookingServiceFixture()
	userID := uuid.New()
	bookingID := uuid.New()

	f.bookings.On("GetByID", bookingID).Return(&models.Booking{
		ID:     bookingID,
		UserID: userID,
		Status: models.BookingStatusConfirmed,
	}, nil)

	attempt, err := f.service.SubmitPayment(ctx, bookingID, userID)
	assert.Nil(t, attempt)
	assert.True(t, models.IsKind(err, models.ErrKindInvalidStateTransition))
	f.payments.AssertNotCalled(t, "SubmitAttempt", mock.Anything, mock.Anything)
}

func TestSubmitPaymentCreatesAttemptForBookingTotal(t *testing.T) {
	ctx := context.Background()
	f := newBookingServiceFixture()
	userID := uuid.New()
	bookingID := uuid.New()

	f.bookings.On("GetByID", bookingID).Return(&models.Booking{
		ID:              bookingID,
		UserID:          userID,
		TotalPrice:      9500,
		Status:          models.BookingStatusPendingPayment,
		PaymentDeadline: time.Now().UTC().Add(time.Hour),
	}, nil)
	f.payments.On("SubmitAttempt", bookingID, int64(9500)).Return(&models.PaymentAttempt{
		ID:        uuid.New(),
		BookingID: bookingID,
		Amount:    9500,
		Status:    models.PaymentStatusPendingVerify,
	}, nil)

	attempt, err := f.service.SubmitPayment(ctx, bookingID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(9500), attempt.Amount)
	f.payments.AssertExpectations(t)
}

func TestGetByReferenceHidesOtherUsersBookings(t *testing.T) {
	f := newBookingServiceFixture()
	owner := uuid.New()
	other := uuid.New()

	f.bookings.On("GetByReference", "BK-h3K9pQ2x").
		Return(&models.Booking{ID: uuid.New(), Reference: "BK-h3K9pQ2x", UserID: owner}, nil)

	booking, err := f.service.GetByReference("BK-h3K9pQ2x", other)
	assert.Nil(t, booking)
	assert.True(t, models.IsKind(err, models.ErrKindNotFound))

	booking, err = f.service.GetByReference("BK-h3K9pQ2x", owner)
	require.NoError(t, err)
	assert.Equal(t, "BK-h3K9pQ2x", booking.Reference)
}

func TestReservationLookup(t *testing.T) {
	f := newBookingServiceFixture()
	token := uuid.New()
	missing := uuid.New()

	f.ledger.On("GetReservation", token).
		Return(&models.SeatReservation{Token: token, Seats: 2}, nil)
	f.ledger.On("GetReservation", missing).Return(nil, nil)

	res, err := f.service.Reservation(token)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Seats)

	res, err = f.service.Reservation(missing)
	assert.Nil(t, res)
	assert.True(t, models.IsKind(err, models.ErrKindNotFound))
}

func TestRefundPercentage(t *testing.T) {
	now := date("2025-01-10")

	tests := []struct {
		name       string
		departDate time.Time
		expected   int
	}{
		{"Ten Days Out", date("2025-01-20"), 100},
		{"Exactly Seven Days", date("2025-01-17"), 100},
		{"Four Days Out", date("2025-01-14"), 50},
		{"Exactly Three Days", date("2025-01-13"), 50},
		{"One Day Out", date("2025-01-11"), 0},
		{"Same Day", date("2025-01-10"), 0},
		{"Already Departed", date("2025-01-05"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RefundPercentage(tt.departDate, now))
		})
	}
}

func TestRefundAmountRounding(t *testing.T) {
	now := date("2025-01-10")

	// 50% of 9999 is 4999.5, rounded half up to 5000
	assert.Equal(t, int64(5000), RefundAmount(9999, date("2025-01-14"), now))

	// Full refund returns the exact total
	assert.Equal(t, int64(9999), RefundAmount(9999, date("2025-01-20"), now))

	// No refund inside the cutoff
	assert.Equal(t, int64(0), RefundAmount(9999, date("2025-01-11"), now))
}

func TestRefundUsesCalendarDaysNotHours(t *testing.T) {
	// 23:59 on the 10th to midnight on the 17th is under 7x24 hours but
	// exactly 7 calendar days, so the full tier still applies.
	now := time.Date(2025, 1, 10, 23, 59, 0, 0, time.UTC)
	depart := time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 100, RefundPercentage(depart, now))
}
