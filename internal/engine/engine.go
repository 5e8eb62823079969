package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/drivoro/vehicle-rental/internal/model"
	"github.com/drivoro/vehicle-rental/internal/pricing"
	"github.com/drivoro/vehicle-rental/internal/queue"
)

// Notifier dispatches intents to the message broker.  Dispatch is
// fire-and-forget from the engine's point of view: once a reservation
// write has committed, a publish failure is logged and left to the
// dispatcher's own retry policy, it never fails the operation.
type Notifier interface {
	Publish(ctx context.Context, intent queue.Intent) error
}

// Options tune the engine.  Zero values fall back to defaults.
type Options struct {
	// StoreTimeout bounds every store round-trip; on expiry the
	// operation fails with ErrStoreTimeout and the transaction rolls
	// back.
	StoreTimeout time.Duration
	// CancellationCutoff is the window before rental start inside
	// which a cancellation is flagged late.
	CancellationCutoff time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	defaultStoreTimeout = 5 * time.Second
	defaultCancelCutoff = 48 * time.Hour
	publishTimeout      = 5 * time.Second
)

// Engine orchestrates the booking lifecycle: it validates requests,
// runs the availability check and the write inside one per-vehicle
// critical section, drives status changes through the state machine
// and emits intents after commit.  It is safe for concurrent use.
type Engine struct {
	store        Store
	catalog      Catalog
	notifier     Notifier
	log          *logrus.Entry
	now          func() time.Time
	storeTimeout time.Duration
	cancelCutoff time.Duration
}

// New wires an engine.  notifier may be nil, in which case intents
// are dropped (useful in tests).
func New(store Store, catalog Catalog, notifier Notifier, log *logrus.Entry, opts Options) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{
		store:        store,
		catalog:      catalog,
		notifier:     notifier,
		log:          log,
		now:          time.Now,
		storeTimeout: defaultStoreTimeout,
		cancelCutoff: defaultCancelCutoff,
	}
	if opts.StoreTimeout > 0 {
		e.storeTimeout = opts.StoreTimeout
	}
	if opts.CancellationCutoff > 0 {
		e.cancelCutoff = opts.CancellationCutoff
	}
	if opts.Now != nil {
		e.now = opts.Now
	}
	return e
}

// CreateBookingInput carries a booking request.  The customer is the
// acting user; the rate card comes from the catalog and is trusted as
// given.
type CreateBookingInput struct {
	VehicleID       uint64
	Interval        model.Interval
	PickupLocation  string
	DropoffLocation string
	RateCard        model.RateCard
}

// CreateBooking validates the request, prices it, and persists a new
// PENDING reservation if the vehicle is free for the whole interval.
// The availability read and the insert share one per-vehicle critical
// section, so two concurrent requests for overlapping intervals on
// the same vehicle end with exactly one success and one
// VehicleNotAvailableError.  On success a BookingCreated intent is
// emitted asynchronously.
func (e *Engine) CreateBooking(ctx context.Context, actor model.Actor, in CreateBookingInput) (*model.Reservation, error) {
	now := e.now().UTC()
	iv := model.NewInterval(in.Interval.Start, in.Interval.End)
	if !iv.Valid() || iv.Start.Before(now) {
		return nil, ErrInvalidInterval
	}
	price, err := pricing.ComputePrice(in.RateCard, iv)
	if err != nil {
		return nil, err
	}

	res := &model.Reservation{
		ID:              uuid.NewString(),
		Number:          newReservationNumber(),
		VehicleID:       in.VehicleID,
		CustomerID:      actor.ID,
		Interval:        iv,
		PickupLocation:  in.PickupLocation,
		DropoffLocation: in.DropoffLocation,
		Price:           price,
		Status:          model.StatusPending,
		PaymentStatus:   model.PaymentUnpaid,
	}

	err = e.withVehicle(ctx, in.VehicleID, func(ctx context.Context, tx Tx) error {
		avail, err := CheckAvailability(ctx, tx, in.VehicleID, iv, "")
		if err != nil {
			return err
		}
		if !avail.Available {
			return &VehicleNotAvailableError{VehicleID: in.VehicleID, Conflicts: avail.Conflicts}
		}
		return tx.Insert(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"op": "create_booking", "reservation_id": res.ID, "vehicle_id": res.VehicleID, "customer_id": res.CustomerID,
	}).Info("reservation created")

	e.emit(queue.BookingCreatedIntent{
		ReservationID: res.ID,
		Number:        res.Number,
		VehicleID:     res.VehicleID,
		CustomerID:    res.CustomerID,
		StartsAt:      iv.Start.Format(time.RFC3339),
		EndsAt:        iv.End.Format(time.RFC3339),
		Pickup:        res.PickupLocation,
		Dropoff:       res.DropoffLocation,
		AmountCents:   price.AmountCents,
		Currency:      price.Currency,
		CreatedAt:     now.Format(time.RFC3339),
	})
	return res, nil
}

// ConfirmBooking moves a PENDING reservation to CONFIRMED.  Only an
// admin or the partner owning the vehicle may confirm.  Availability
// is re-checked under the vehicle lock, excluding the reservation
// itself, in case a conflicting booking slipped in since creation.
func (e *Engine) ConfirmBooking(ctx context.Context, actor model.Actor, reservationID string) (*model.Reservation, error) {
	return e.transition(ctx, actor, reservationID, model.StatusConfirmed, "")
}

// RejectBooking moves a PENDING reservation to REJECTED, recording
// the reason in the audit notes.  Authorization matches confirm.
func (e *Engine) RejectBooking(ctx context.Context, actor model.Actor, reservationID, reason string) (*model.Reservation, error) {
	return e.transition(ctx, actor, reservationID, model.StatusRejected, reason)
}

// CancelBooking cancels a reservation.  The owning customer, the
// vehicle's partner or an admin may cancel; a cancellation inside the
// cutoff window is permitted but flagged late for downstream billing.
func (e *Engine) CancelBooking(ctx context.Context, actor model.Actor, reservationID string) (*model.Reservation, error) {
	return e.transition(ctx, actor, reservationID, model.StatusCancelled, "")
}

// StartBooking is the explicit operator path for CONFIRMED ->
// IN_PROGRESS; the schedule sweep covers the wall-clock path.
func (e *Engine) StartBooking(ctx context.Context, actor model.Actor, reservationID string) (*model.Reservation, error) {
	return e.transition(ctx, actor, reservationID, model.StatusInProgress, "")
}

// CompleteBooking is the explicit operator path for IN_PROGRESS ->
// COMPLETED.
func (e *Engine) CompleteBooking(ctx context.Context, actor model.Actor, reservationID string) (*model.Reservation, error) {
	return e.transition(ctx, actor, reservationID, model.StatusCompleted, "")
}

// transition implements every actor-initiated status change.  The
// authorization guard runs twice: once on a plain read so validation
// errors are rejected before any transaction opens, and again on the
// re-read under the vehicle lock so the decision is made against
// current state.
func (e *Engine) transition(ctx context.Context, actor model.Actor, id string, to model.Status, reason string) (*model.Reservation, error) {
	res, err := e.reservation(ctx, id)
	if err != nil {
		return nil, err
	}
	owner, err := e.ownerOf(ctx, res.VehicleID)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	if _, err := GuardTransition(actor, owner, res, to, now, e.cancelCutoff); err != nil {
		return nil, err
	}

	var updated *model.Reservation
	err = e.withVehicle(ctx, res.VehicleID, func(ctx context.Context, tx Tx) error {
		cur, err := tx.Reservation(ctx, id)
		if err != nil {
			return err
		}
		late, err := GuardTransition(actor, owner, cur, to, now, e.cancelCutoff)
		if err != nil {
			return err
		}
		if to == model.StatusConfirmed {
			avail, err := CheckAvailability(ctx, tx, cur.VehicleID, cur.Interval, cur.ID)
			if err != nil {
				return err
			}
			if !avail.Available {
				return &VehicleNotAvailableError{VehicleID: cur.VehicleID, Conflicts: avail.Conflicts}
			}
		}
		ok, err := tx.Transition(ctx, id, cur.Status, to, late)
		if err != nil {
			return err
		}
		if !ok {
			return &IllegalTransitionError{From: cur.Status, To: to}
		}
		note := model.Note{Author: actor.AuditAuthor(), Body: noteBody(to, reason, late), CreatedAt: now}
		if err := tx.AppendNote(ctx, id, note); err != nil {
			return err
		}
		cur.Status = to
		if late {
			cur.LateCancellation = true
		}
		cur.Notes = append(cur.Notes, note)
		cur.UpdatedAt = now
		updated = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"op": "transition", "reservation_id": id, "to": to, "actor_id": actor.ID, "actor_role": actor.Role,
	}).Info("reservation transitioned")

	e.emitTransition(updated, reason, now)
	return updated, nil
}

// TransitionOnSchedule advances CONFIRMED reservations whose start
// has arrived to IN_PROGRESS and IN_PROGRESS reservations whose end
// has passed to COMPLETED.  Each row is advanced under its vehicle
// lock with a status-conditional update, so re-running the sweep with
// no elapsed time is a no-op, not an error.  A failure on one row is
// logged and does not stop the sweep.
func (e *Engine) TransitionOnSchedule(ctx context.Context) (started, completed int, err error) {
	now := e.now().UTC()
	due, err := e.due(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range due {
		var to model.Status
		switch {
		case r.Status == model.StatusConfirmed && !r.Interval.Start.After(now):
			to = model.StatusInProgress
		case r.Status == model.StatusInProgress && !r.Interval.End.After(now):
			to = model.StatusCompleted
		default:
			continue
		}
		advanced := false
		from := r.Status
		werr := e.withVehicle(ctx, r.VehicleID, func(ctx context.Context, tx Tx) error {
			ok, err := tx.Transition(ctx, r.ID, from, to, false)
			if err != nil {
				return err
			}
			if !ok {
				// Already advanced by an operator or an earlier sweep.
				return nil
			}
			advanced = true
			return tx.AppendNote(ctx, r.ID, model.Note{
				Author:    "system",
				Body:      noteBody(to, "", false),
				CreatedAt: now,
			})
		})
		if werr != nil {
			e.log.WithError(werr).WithField("reservation_id", r.ID).Warn("schedule sweep: transition failed")
			continue
		}
		if advanced {
			if to == model.StatusInProgress {
				started++
			} else {
				completed++
			}
		}
	}
	return started, completed, nil
}

// MarkPaymentStatus records a payment-gateway notification.  This is
// the only code path in the system that changes a reservation's
// payment status; confirm, cancel and complete never touch it.
func (e *Engine) MarkPaymentStatus(ctx context.Context, reservationID string, ps model.PaymentStatus) error {
	switch ps {
	case model.PaymentUnpaid, model.PaymentAuthorized, model.PaymentPaid:
	default:
		return fmt.Errorf("unknown payment status %q", ps)
	}
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.store.SetPaymentStatus(ctx, reservationID, ps); err != nil {
		return e.mapStoreErr(err)
	}
	e.log.WithFields(logrus.Fields{"reservation_id": reservationID, "payment_status": ps}).Info("payment status recorded")
	return nil
}

// Reservation loads one reservation with its audit notes.
func (e *Engine) Reservation(ctx context.Context, id string) (*model.Reservation, error) {
	return e.reservation(ctx, id)
}

// ListByCustomer returns the customer's reservations, newest first.
func (e *Engine) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	out, err := e.store.ListByCustomer(ctx, customerID)
	return out, e.mapStoreErr(err)
}

// ListByPartner returns reservations on the partner's vehicles,
// newest first.
func (e *Engine) ListByPartner(ctx context.Context, partnerID uint64) ([]model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	out, err := e.store.ListByPartner(ctx, partnerID)
	return out, e.mapStoreErr(err)
}

func (e *Engine) reservation(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	res, err := e.store.Reservation(ctx, id)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}
	return res, nil
}

func (e *Engine) due(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	out, err := e.store.Due(ctx, now)
	return out, e.mapStoreErr(err)
}

func (e *Engine) withVehicle(ctx context.Context, vehicleID uint64, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return e.mapStoreErr(e.store.WithVehicle(ctx, vehicleID, fn))
}

func (e *Engine) ownerOf(ctx context.Context, vehicleID uint64) (uint64, error) {
	owner, err := e.catalog.OwnerOf(ctx, vehicleID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return owner, nil
}

// mapStoreErr converts context expiry into the engine's timeout error
// and passes everything else through unchanged.
func (e *Engine) mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	}
	return err
}

// emitTransition publishes the intent matching the new status.
// StartBooking/CompleteBooking and the sweep transitions have no
// intent of their own.
func (e *Engine) emitTransition(res *model.Reservation, reason string, now time.Time) {
	switch res.Status {
	case model.StatusConfirmed:
		e.emit(queue.BookingConfirmedIntent{
			ReservationID: res.ID,
			Number:        res.Number,
			VehicleID:     res.VehicleID,
			CustomerID:    res.CustomerID,
			StartsAt:      res.Interval.Start.Format(time.RFC3339),
			EndsAt:        res.Interval.End.Format(time.RFC3339),
			AmountCents:   res.Price.AmountCents,
			Currency:      res.Price.Currency,
			ConfirmedAt:   now.Format(time.RFC3339),
		})
	case model.StatusRejected:
		e.emit(queue.BookingRejectedIntent{
			ReservationID: res.ID,
			Number:        res.Number,
			VehicleID:     res.VehicleID,
			CustomerID:    res.CustomerID,
			Reason:        reason,
			RejectedAt:    now.Format(time.RFC3339),
		})
	case model.StatusCancelled:
		e.emit(queue.BookingCancelledIntent{
			ReservationID: res.ID,
			Number:        res.Number,
			VehicleID:     res.VehicleID,
			CustomerID:    res.CustomerID,
			StartsAt:      res.Interval.Start.Format(time.RFC3339),
			Late:          res.LateCancellation,
			CancelledAt:   now.Format(time.RFC3339),
		})
	}
}

// emit dispatches an intent in the background.  Publish failures are
// logged and left to the notification dispatcher's retry policy;
// they never fail the engine operation.
func (e *Engine) emit(intent queue.Intent) {
	if e.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := e.notifier.Publish(ctx, intent); err != nil {
			e.log.WithError(err).WithField("queue", intent.QueueName()).Warn("intent publish failed")
		}
	}()
}

func noteBody(to model.Status, reason string, late bool) string {
	switch to {
	case model.StatusConfirmed:
		return "booking confirmed"
	case model.StatusRejected:
		if reason != "" {
			return "booking rejected: " + reason
		}
		return "booking rejected"
	case model.StatusCancelled:
		if late {
			return "booking cancelled (late)"
		}
		return "booking cancelled"
	case model.StatusInProgress:
		return "rental started"
	case model.StatusCompleted:
		return "rental completed"
	}
	return "status changed to " + strings.ToLower(string(to))
}

// newReservationNumber returns a short human-readable reference like
// BK-4H7KD2M9QX.  Uniqueness is backed by the store's unique index;
// the keyspace makes collisions vanishingly rare.
func newReservationNumber() string {
	return "BK-" + strings.ToUpper(shortuuid.New()[:10])
}
