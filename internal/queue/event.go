// Package queue defines the intent payloads exchanged over the
// message broker.  An intent is a decoupled notification of a state
// change; delivery is best-effort and asynchronous, consumers layer
// their own retries on top.
package queue

// Intent is implemented by every broker payload.  QueueName returns
// the durable queue the payload is published to.
type Intent interface {
	QueueName() string
}

// BookingCreatedIntent is emitted after a new reservation commits.
// Downstream consumers generate the rental contract and send the
// confirmation email from it without querying the primary database.
type BookingCreatedIntent struct {
	ReservationID string `json:"reservation_id"`
	Number        string `json:"reservation_number"`
	VehicleID     uint64 `json:"vehicle_id"`
	CustomerID    uint64 `json:"customer_id"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	Pickup        string `json:"pickup_location"`
	Dropoff       string `json:"dropoff_location"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at"`
}

func (BookingCreatedIntent) QueueName() string { return "booking.created" }

// BookingConfirmedIntent is emitted when a partner or admin confirms
// a reservation.
type BookingConfirmedIntent struct {
	ReservationID string `json:"reservation_id"`
	Number        string `json:"reservation_number"`
	VehicleID     uint64 `json:"vehicle_id"`
	CustomerID    uint64 `json:"customer_id"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	ConfirmedAt   string `json:"confirmed_at"`
}

func (BookingConfirmedIntent) QueueName() string { return "booking.confirmed" }

// BookingRejectedIntent is emitted when a reservation is rejected.
// Reason is the free-text explanation also recorded in the audit
// notes.
type BookingRejectedIntent struct {
	ReservationID string `json:"reservation_id"`
	Number        string `json:"reservation_number"`
	VehicleID     uint64 `json:"vehicle_id"`
	CustomerID    uint64 `json:"customer_id"`
	Reason        string `json:"reason"`
	RejectedAt    string `json:"rejected_at"`
}

func (BookingRejectedIntent) QueueName() string { return "booking.rejected" }

// BookingCancelledIntent is emitted when a reservation is cancelled.
// Late marks a cancellation inside the configured cutoff window; the
// billing side decides what to do with it, the engine only reports.
type BookingCancelledIntent struct {
	ReservationID string `json:"reservation_id"`
	Number        string `json:"reservation_number"`
	VehicleID     uint64 `json:"vehicle_id"`
	CustomerID    uint64 `json:"customer_id"`
	StartsAt      string `json:"starts_at"`
	Late          bool   `json:"late_cancellation"`
	CancelledAt   string `json:"cancelled_at"`
}

func (BookingCancelledIntent) QueueName() string { return "booking.cancelled" }
