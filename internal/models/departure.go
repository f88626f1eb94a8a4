package models

import (
	"time"

	"github.com/google/uuid"
)

// Tour holds the tour-level defaults supplied by the catalog service.
// The catalog owns these records; this service only reads them.
type Tour struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BasePrice    int64  `json:"base_price"` // per traveler, minor currency units
	MaxGroupSize int    `json:"max_group_size"`
	IsActive     bool   `json:"is_active"`
}

// TourDeparture is a tour offered on a specific date with its own capacity
// counter. booked_seats is mutated only through the reservation operations in
// DepartureRepository so the capacity invariant holds under concurrency.
type TourDeparture struct {
	ID                  uuid.UUID `json:"id" db:"id"`
	TourID              string    `json:"tour_id" db:"tour_id"`
	DepartDate          time.Time `json:"depart_date" db:"depart_date"`
	BasePrice           int64     `json:"base_price" db:"base_price"` // per traveler, minor units
	MaxCapacityOverride *int      `json:"max_capacity_override,omitempty" db:"max_capacity_override"`
	BookedSeats         int       `json:"booked_seats" db:"booked_seats"`
	IsOpen              bool      `json:"is_open" db:"is_open"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// EffectiveCapacity resolves the departure's capacity: the per-departure
// override when set, otherwise the tour's default group size.
func (d *TourDeparture) EffectiveCapacity(tourDefault int) int {
	if d.MaxCapacityOverride != nil {
		return *d.MaxCapacityOverride
	}
	return tourDefault
}

// SetDepartureOpenRequest is the request body for
// PATCH /admin/departures/:id/open. Open is a pointer so "open": false binds.
type SetDepartureOpenRequest struct {
	Open *bool `json:"open" binding:"required"`
}

// SeatReservation is the durable record behind a reservation token. A token
// is released at most once; the released flag makes release idempotent and
// lets a reconciliation pass find holds that were never returned.
type SeatReservation struct {
	Token       uuid.UUID  `json:"token" db:"token"`
	DepartureID uuid.UUID  `json:"departure_id" db:"departure_id"`
	Seats       int        `json:"seats" db:"seats"`
	Released    bool       `json:"released" db:"released"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ReleasedAt  *time.Time `json:"released_at,omitempty" db:"released_at"`
}
