package engine

import (
	"time"

	"github.com/drivoro/vehicle-rental/internal/model"
)

// transitions is the full lifecycle graph.  Anything absent here is
// illegal; there are no self-loops and no way back into an earlier
// state.
var transitions = map[model.Status]map[model.Status]bool{
	model.StatusPending: {
		model.StatusConfirmed: true,
		model.StatusRejected:  true,
		model.StatusCancelled: true,
	},
	model.StatusConfirmed: {
		model.StatusInProgress: true,
		model.StatusCancelled:  true,
	},
	model.StatusInProgress: {
		model.StatusCompleted: true,
		model.StatusCancelled: true,
	},
}

// CanTransition reports whether from -> to is on the lifecycle graph.
func CanTransition(from, to model.Status) bool {
	return transitions[from][to]
}

// GuardTransition enforces both the authorization rule and the graph
// for an actor-initiated status change.  ownerID is the partner owning
// the reservation's vehicle.  For cancellations it also computes the
// late-cancellation flag: a cancellation inside cancelCutoff of the
// rental start is still permitted but flagged for downstream billing.
//
// Authorization failures return ErrUnauthorized without revealing
// which role would have sufficed.  A confirm attempt on an already
// confirmed reservation returns ErrAlreadyConfirmed rather than
// silently succeeding, to surface double-submission bugs.
func GuardTransition(actor model.Actor, ownerID uint64, res *model.Reservation, to model.Status, now time.Time, cancelCutoff time.Duration) (late bool, err error) {
	switch to {
	case model.StatusConfirmed, model.StatusRejected:
		if !canManageVehicle(actor, ownerID) {
			return false, ErrUnauthorized
		}
		if to == model.StatusConfirmed && res.Status == model.StatusConfirmed {
			return false, ErrAlreadyConfirmed
		}

	case model.StatusCancelled:
		ownCustomer := actor.Role == model.RoleCustomer && actor.ID == res.CustomerID
		if !ownCustomer && !canManageVehicle(actor, ownerID) {
			return false, ErrUnauthorized
		}
		late = res.Interval.Start.Sub(now) < cancelCutoff

	case model.StatusInProgress, model.StatusCompleted:
		// Operator-only; the schedule sweep takes the system path and
		// bypasses this guard.  There is no customer-initiated way to
		// start or complete a rental.
		if !canManageVehicle(actor, ownerID) {
			return false, ErrUnauthorized
		}

	default:
		return false, &IllegalTransitionError{From: res.Status, To: to}
	}

	if !CanTransition(res.Status, to) {
		return false, &IllegalTransitionError{From: res.Status, To: to}
	}
	return late, nil
}

// canManageVehicle reports whether the actor may act on bookings of a
// vehicle owned by ownerID: admins always, partners only for their
// own vehicles.
func canManageVehicle(actor model.Actor, ownerID uint64) bool {
	if actor.Role == model.RoleAdmin {
		return true
	}
	return actor.Role == model.RolePartner && actor.ID == ownerID
}
