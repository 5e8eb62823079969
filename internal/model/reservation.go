package model

import "time"

// Status enumerates the lifecycle states of a reservation.  A
// reservation starts PENDING and only ever moves forward through
// the transition graph; REJECTED, CANCELLED and COMPLETED are
// terminal.  Reservations are never deleted: a cancelled booking
// keeps its row so the audit trail and utilization history survive.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusRejected   Status = "REJECTED"
	StatusCancelled  Status = "CANCELLED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// Blocking reports whether a reservation in this state occupies its
// vehicle for the purpose of availability checks.  Only PENDING,
// CONFIRMED and IN_PROGRESS reservations participate in overlap
// detection; REJECTED and CANCELLED rows leave the overlap universe
// permanently and COMPLETED intervals lie in the past.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusInProgress
}

// PaymentStatus tracks what the payment gateway has told us about a
// reservation.  The engine records it but never changes it on its
// own; only an explicit gateway notification mutates this field.
type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "UNPAID"
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentPaid       PaymentStatus = "PAID"
)

// Price is an amount in the currency's minor unit (cents for EUR/USD)
// together with its ISO-4217 currency code.  It is computed once at
// creation time and never recomputed afterwards: a later change to the
// vehicle's rate card must not retroactively reprice a booking.
type Price struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Note is a single append-only audit entry on a reservation.
//
// Fields:
//
//	Author    – who wrote the entry ("customer:17", "partner:4", "system").
//	Body      – free text.
//	CreatedAt – when the entry was written, UTC.
type Note struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Reservation records a customer's booking of one vehicle for one
// time interval.
//
// Fields:
//
//	ID               – opaque unique identifier (UUID), immutable.
//	Number           – human-readable reference, unique, immutable.
//	VehicleID        – vehicle being rented.
//	CustomerID       – user who requested the booking.
//	Interval         – rental period, half-open [start, end), UTC.
//	PickupLocation   – opaque location identifier, not validated here.
//	DropoffLocation  – opaque location identifier, not validated here.
//	Price            – total price fixed at creation.
//	Status           – lifecycle state, see Status.
//	PaymentStatus    – last state reported by the payment gateway.
//	LateCancellation – set when the booking was cancelled inside the
//	                   cutoff window; input to downstream billing
//	                   policy, the engine itself never levies a fee.
//	Notes            – append-only audit entries, oldest first.
//	CreatedAt        – creation timestamp, maintained by the store.
//	UpdatedAt        – last update timestamp, maintained by the store.
type Reservation struct {
	ID               string        `json:"id"`
	Number           string        `json:"reservation_number"`
	VehicleID        uint64        `json:"vehicle_id"`
	CustomerID       uint64        `json:"customer_id"`
	Interval         Interval      `json:"interval"`
	PickupLocation   string        `json:"pickup_location"`
	DropoffLocation  string        `json:"dropoff_location"`
	Price            Price         `json:"price"`
	Status           Status        `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	LateCancellation bool          `json:"late_cancellation"`
	Notes            []Note        `json:"notes,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
