// Package engine implements the reservation engine: availability
// checking, the booking state machine and the orchestration of the
// booking lifecycle over a transactional store.
package engine

import (
	"errors"
	"fmt"

	"github.com/drivoro/vehicle-rental/internal/model"
)

// Sentinel errors of the engine.  Validation errors (ErrInvalidInterval,
// ErrUnauthorized and pricing.ErrInvalidRateCard) are raised before any
// transaction opens.  ErrStoreTimeout and ErrCatalogUnavailable are
// infrastructure failures: the engine does not retry them itself, to
// avoid duplicate side effects, but callers may.
var (
	ErrInvalidInterval     = errors.New("invalid interval")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAlreadyConfirmed    = errors.New("reservation already confirmed")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrStoreTimeout        = errors.New("store timeout")
	ErrCatalogUnavailable  = errors.New("catalog unavailable")
)

// VehicleNotAvailableError rejects a booking whose interval overlaps
// existing non-terminal reservations of the same vehicle.  The
// conflicting reservations are carried along so the caller can offer
// alternative dates.  Business-rule rejection: retrying with the same
// interval reproduces the same conflict.
type VehicleNotAvailableError struct {
	VehicleID uint64
	Conflicts []model.Reservation
}

func (e *VehicleNotAvailableError) Error() string {
	return fmt.Sprintf("vehicle %d not available: %d conflicting reservation(s)", e.VehicleID, len(e.Conflicts))
}

// IllegalTransitionError rejects a status change outside the
// transition graph.
type IllegalTransitionError struct {
	From, To model.Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
