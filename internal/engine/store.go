package engine

import (
	"context"
	"time"

	"github.com/drivoro/vehicle-rental/internal/model"
)

// Store is the persistence boundary of the reservation engine.  All
// reservation mutation in the system goes through the engine and
// therefore through this interface; nothing else writes to the
// reservation tables.
//
// WithVehicle is the serialization primitive: it runs fn inside a
// transaction while holding an exclusive per-vehicle advisory lock,
// so an availability read and the subsequent write behave atomically
// with respect to every other reservation of the same vehicle.
// Reservations of different vehicles never contend.  If fn returns an
// error the transaction is rolled back and the reservation leaves no
// trace.  The context handed to fn carries the store deadline; every
// read and write inside the transaction must use it.
type Store interface {
	WithVehicle(ctx context.Context, vehicleID uint64, fn func(ctx context.Context, tx Tx) error) error

	// Reservation loads a single reservation with its notes.
	Reservation(ctx context.Context, id string) (*model.Reservation, error)

	// ListByCustomer returns the customer's reservations, newest first.
	ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error)

	// ListByPartner returns reservations on vehicles owned by the
	// partner, newest first.
	ListByPartner(ctx context.Context, partnerID uint64) ([]model.Reservation, error)

	// Due returns reservations the schedule sweep should advance:
	// CONFIRMED rows whose start has arrived and IN_PROGRESS rows
	// whose end has passed.
	Due(ctx context.Context, now time.Time) ([]model.Reservation, error)

	// SetPaymentStatus records a payment-gateway notification.  It is
	// the only path that mutates a reservation's payment status.
	SetPaymentStatus(ctx context.Context, id string, ps model.PaymentStatus) error
}

// Tx is the slice of the store visible inside a WithVehicle
// transaction.
type Tx interface {
	// ActiveByVehicle returns the vehicle's reservations in blocking
	// states (PENDING, CONFIRMED, IN_PROGRESS), optionally excluding
	// one reservation id; excludeID may be empty.
	ActiveByVehicle(ctx context.Context, vehicleID uint64, excludeID string) ([]model.Reservation, error)

	// Insert persists a new reservation.
	Insert(ctx context.Context, res *model.Reservation) error

	// Reservation loads a reservation with its notes for update.
	Reservation(ctx context.Context, id string) (*model.Reservation, error)

	// Transition conditionally moves a reservation from one status to
	// another.  It reports false without error when the row is no
	// longer in the from status, which makes sweep re-runs no-ops.
	Transition(ctx context.Context, id string, from, to model.Status, lateCancellation bool) (bool, error)

	// AppendNote adds an audit entry to the reservation.
	AppendNote(ctx context.Context, id string, note model.Note) error
}

// Catalog is the engine's view of the external vehicle catalog.  It
// is assumed available; failures surface as ErrCatalogUnavailable.
type Catalog interface {
	RateCard(ctx context.Context, vehicleID uint64) (model.RateCard, error)
	OwnerOf(ctx context.Context, vehicleID uint64) (uint64, error)
}
