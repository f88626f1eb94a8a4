package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ceylontrails/tours-backend/internal/models"
)

// DepartureRepository is the availability ledger: it owns the per-departure
// booked_seats counter and the seat_reservations token table. All capacity
// mutation goes through Reserve and Release so the no-oversell invariant
// holds under concurrent requests.
type DepartureRepository struct {
	db *sqlx.DB
}

// NewDepartureRepository creates a new DepartureRepository.
func NewDepartureRepository(db *sqlx.DB) *DepartureRepository {
	return &DepartureRepository{db: db}
}

// GetByID retrieves a departure by ID. Returns nil, nil when absent.
func (r *DepartureRepository) GetByID(departureID uuid.UUID) (*models.TourDeparture, error) {
	var departure models.TourDeparture
	query := `
		SELECT id, tour_id, depart_date, base_price, max_capacity_override,
		       booked_seats, is_open, created_at, updated_at
		FROM tour_departures
		WHERE id = $1`

	err := r.db.Get(&departure, query, departureID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get departure: %w", err)
	}
	return &departure, nil
}

// Reserve atomically checks capacity and increments booked_seats for a
// departure, returning a reservation token. The check and increment run as a
// single guarded UPDATE, so two concurrent reserves that together exceed
// capacity resolve to exactly one success. tourDefaultCapacity is the tour's
// max group size, used when the departure has no per-departure override.
func (r *DepartureRepository) Reserve(departureID uuid.UUID, seats int, tourDefaultCapacity int) (uuid.UUID, error) {
	if seats < 1 {
		return uuid.Nil, models.NewValidationError("seats must be positive", map[string]string{"seats": "must be at least 1"})
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin reserve transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE tour_departures
		SET booked_seats = booked_seats + $2, updated_at = NOW()
		WHERE id = $1
		  AND is_open = TRUE
		  AND booked_seats + $2 <= COALESCE(max_capacity_override, $3)`,
		departureID, seats, tourDefaultCapacity)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to reserve seats: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return uuid.Nil, models.NewCapacityExceededError("not enough seats available on this departure")
	}

	token := uuid.New()
	_, err = tx.Exec(`
		INSERT INTO seat_reservations (token, departure_id, seats, released, created_at)
		VALUES ($1, $2, $3, FALSE, NOW())`,
		token, departureID, seats)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return token, nil
}

// Release returns the seats held by a reservation token. Idempotent: the
// token row is flipped to released exactly once and the counter decremented
// in the same transaction; releasing an already-released or unknown token is
// a no-op.
func (r *DepartureRepository) Release(token uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin release transaction: %w", err)
	}
	defer tx.Rollback()

	var departureID uuid.UUID
	var seats int
	err = tx.QueryRow(`
		UPDATE seat_reservations
		SET released = TRUE, released_at = NOW()
		WHERE token = $1 AND released = FALSE
		RETURNING departure_id, seats`,
		token).Scan(&departureID, &seats)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE tour_departures
		SET booked_seats = GREATEST(booked_seats - $2, 0), updated_at = NOW()
		WHERE id = $1`,
		departureID, seats)
	if err != nil {
		return fmt.Errorf("failed to return seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit release: %w", err)
	}
	return nil
}

// GetReservation retrieves a reservation by token. Returns nil, nil when absent.
func (r *DepartureRepository) GetReservation(token uuid.UUID) (*models.SeatReservation, error) {
	var res models.SeatReservation
	query := `
		SELECT token, departure_id, seats, released, created_at, released_at
		FROM seat_reservations
		WHERE token = $1`

	err := r.db.Get(&res, query, token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &res, nil
}

// ReleaseOrphanReservations finds reservations still held by bookings that
// reached a terminal released state (cancelled or expired) and returns their
// seats. This is the reconciliation pass for a crash between marking a
// booking terminal and releasing its seats. Returns the number of
// reservations corrected.
func (r *DepartureRepository) ReleaseOrphanReservations() (int, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin reconciliation: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		UPDATE seat_reservations sr
		SET released = TRUE, released_at = NOW()
		FROM bookings b
		WHERE b.reservation_token = sr.token
		  AND sr.released = FALSE
		  AND b.status IN ('cancelled', 'expired')
		RETURNING sr.departure_id, sr.seats`)
	if err != nil {
		return 0, fmt.Errorf("failed to find orphan reservations: %w", err)
	}

	type orphan struct {
		departureID uuid.UUID
		seats       int
	}
	var orphans []orphan
	for rows.Next() {
		var o orphan
		if err := rows.Scan(&o.departureID, &o.seats); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan orphan reservation: %w", err)
		}
		orphans = append(orphans, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read orphan reservations: %w", err)
	}

	for _, o := range orphans {
		_, err := tx.Exec(`
			UPDATE tour_departures
			SET booked_seats = GREATEST(booked_seats - $2, 0), updated_at = NOW()
			WHERE id = $1`,
			o.departureID, o.seats)
		if err != nil {
			return 0, fmt.Errorf("failed to return orphan seats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return len(orphans), nil
}

// SetOpen soft-closes or reopens a departure for new bookings. Departures are
// never deleted while bookings reference them.
func (r *DepartureRepository) SetOpen(departureID uuid.UUID, open bool) error {
	result, err := r.db.Exec(`
		UPDATE tour_departures
		SET is_open = $2, updated_at = NOW()
		WHERE id = $1`,
		departureID, open)
	if err != nil {
		return fmt.Errorf("failed to update departure: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.NewNotFoundError("departure not found")
	}
	return nil
}

// BookedSeats reports the current counter for a departure, for admin views
// and tests.
func (r *DepartureRepository) BookedSeats(departureID uuid.UUID) (int, error) {
	var booked int
	err := r.db.Get(&booked, `SELECT booked_seats FROM tour_departures WHERE id = $1`, departureID)
	if err == sql.ErrNoRows {
		return 0, models.NewNotFoundError("departure not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get booked seats: %w", err)
	}
	return booked, nil
}
