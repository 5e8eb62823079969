package engine

import (
	"context"

	"github.com/drivoro/vehicle-rental/internal/model"
)

// ReservationLister is the slice of the store the availability check
// needs.  Tx satisfies it, as does the in-memory store used in tests.
type ReservationLister interface {
	ActiveByVehicle(ctx context.Context, vehicleID uint64, excludeID string) ([]model.Reservation, error)
}

// Availability is the outcome of an overlap check.
type Availability struct {
	Available bool
	Conflicts []model.Reservation
}

// CheckAvailability decides whether the candidate interval is free on
// the vehicle.  It considers only reservations in blocking states and
// uses half-open overlap semantics, so back-to-back bookings touching
// at an endpoint do not conflict.  excludeID skips one reservation,
// used when re-validating an existing reservation against later
// arrivals.
//
// On its own this is just a read; callers that intend to write must
// run it through Store.WithVehicle so the read and the write share
// one per-vehicle critical section.  A bare check-then-write pair is
// not safe under concurrent load.
func CheckAvailability(ctx context.Context, lister ReservationLister, vehicleID uint64, iv model.Interval, excludeID string) (Availability, error) {
	active, err := lister.ActiveByVehicle(ctx, vehicleID, excludeID)
	if err != nil {
		return Availability{}, err
	}
	var conflicts []model.Reservation
	for _, r := range active {
		if r.Interval.Overlaps(iv) {
			conflicts = append(conflicts, r)
		}
	}
	return Availability{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}
