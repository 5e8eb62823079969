package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/drivoro/vehicle-rental/internal/engine"
	"github.com/drivoro/vehicle-rental/internal/model"
)

// ReservationRepo is the MySQL implementation of the engine's
// reservation store.  Reservations live in the reservations table,
// audit entries in reservation_notes.  All timestamps are stored in
// UTC (the DSN sets parseTime=true&loc=UTC).
//
// Per-vehicle serialization uses MySQL named advisory locks
// (GET_LOCK) taken on the same session as the transaction, so the
// availability read and the subsequent write inside WithVehicle are
// atomic with respect to every other caller working on the same
// vehicle.  Different vehicles use different lock names and never
// contend.
type ReservationRepo struct {
	db       *sql.DB
	lockWait time.Duration
}

// NewReservationRepo returns a ReservationRepo bound to the given
// database.  lockWait bounds how long WithVehicle waits for the
// per-vehicle lock before giving up.
func NewReservationRepo(db *sql.DB, lockWait time.Duration) *ReservationRepo {
	if lockWait <= 0 {
		lockWait = 3 * time.Second
	}
	return &ReservationRepo{db: db, lockWait: lockWait}
}

const reservationCols = `id, reservation_number, vehicle_id, customer_id, starts_at, ends_at,
       pickup_location, dropoff_location, amount_cents, currency,
       status, payment_status, late_cancellation, created_at, updated_at`

// WithVehicle acquires the vehicle's advisory lock, opens a
// transaction on the same connection and runs fn inside it.  The
// transaction commits only when fn returns nil; any error rolls it
// back so a failed booking leaves no trace.  The lock is always
// released before the connection goes back to the pool.
func (r *ReservationRepo) WithVehicle(ctx context.Context, vehicleID uint64, fn func(ctx context.Context, tx engine.Tx) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	lockName := fmt.Sprintf("vehicle_reservations:%d", vehicleID)
	var got int
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, lockName, int(r.lockWait.Seconds())).Scan(&got); err != nil {
		return fmt.Errorf("vehicle lock: %w", err)
	}
	if got != 1 {
		// Lock wait exhausted: another caller is holding the vehicle.
		return fmt.Errorf("vehicle lock wait: %w", context.DeadlineExceeded)
	}
	defer func() {
		// Release on a non-cancelled context; leaking the lock into the
		// pool would block the vehicle until the session dies.
		var released sql.NullInt64
		_ = conn.QueryRowContext(context.WithoutCancel(ctx), `SELECT RELEASE_LOCK(?)`, lockName).Scan(&released)
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &reservationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Reservation loads one reservation with its notes.
func (r *ReservationRepo) Reservation(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	res.Notes, err = r.notes(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListByCustomer returns the customer's reservations, newest first,
// without notes.
func (r *ReservationRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error) {
	return r.list(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE customer_id = ? ORDER BY created_at DESC`,
		customerID)
}

// ListByPartner returns reservations on vehicles owned by the
// partner, newest first, without notes.
func (r *ReservationRepo) ListByPartner(ctx context.Context, partnerID uint64) ([]model.Reservation, error) {
	return r.list(ctx,
		`SELECT r.id, r.reservation_number, r.vehicle_id, r.customer_id, r.starts_at, r.ends_at,
		        r.pickup_location, r.dropoff_location, r.amount_cents, r.currency,
		        r.status, r.payment_status, r.late_cancellation, r.created_at, r.updated_at
		 FROM reservations r
		 JOIN vehicles v ON v.id = r.vehicle_id
		 WHERE v.partner_id = ?
		 ORDER BY r.created_at DESC`,
		partnerID)
}

// Due returns rows the schedule sweep should look at: confirmed
// rentals whose start has arrived and running rentals whose end has
// passed.
func (r *ReservationRepo) Due(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	return r.list(ctx,
		`SELECT `+reservationCols+` FROM reservations
		 WHERE (status = 'CONFIRMED' AND starts_at <= ?)
		    OR (status = 'IN_PROGRESS' AND ends_at <= ?)
		 ORDER BY starts_at`,
		now.UTC(), now.UTC())
}

// SetPaymentStatus records a payment-gateway notification.
func (r *ReservationRepo) SetPaymentStatus(ctx context.Context, id string, ps model.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET payment_status = ? WHERE id = ?`, string(ps), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepo) list(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *ReservationRepo) notes(ctx context.Context, q queryer, reservationID string) ([]model.Note, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT author, body, created_at FROM reservation_notes WHERE reservation_id = ? ORDER BY id`,
		reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notes []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.CreatedAt = n.CreatedAt.UTC()
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// reservationTx is the transactional slice handed to the engine
// inside WithVehicle.
type reservationTx struct {
	tx *sql.Tx
}

func (t *reservationTx) ActiveByVehicle(ctx context.Context, vehicleID uint64, excludeID string) ([]model.Reservation, error) {
	query := `SELECT ` + reservationCols + ` FROM reservations
	          WHERE vehicle_id = ? AND status IN ('PENDING','CONFIRMED','IN_PROGRESS')`
	args := []any{vehicleID}
	if excludeID != "" {
		query += ` AND id <> ?`
		args = append(args, excludeID)
	}
	query += ` ORDER BY starts_at`
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (t *reservationTx) Insert(ctx context.Context, res *model.Reservation) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO reservations
		   (id, reservation_number, vehicle_id, customer_id, starts_at, ends_at,
		    pickup_location, dropoff_location, amount_cents, currency,
		    status, payment_status, late_cancellation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Number, res.VehicleID, res.CustomerID,
		res.Interval.Start, res.Interval.End,
		res.PickupLocation, res.DropoffLocation,
		res.Price.AmountCents, res.Price.Currency,
		string(res.Status), string(res.PaymentStatus), res.LateCancellation)
	if err != nil {
		return err
	}
	// Scan back the row so store-maintained timestamps are populated.
	back, err := scanReservation(t.tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ?`, res.ID))
	if err != nil {
		return err
	}
	res.CreatedAt = back.CreatedAt
	res.UpdatedAt = back.UpdatedAt
	return nil
}

func (t *reservationTx) Reservation(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := scanReservation(t.tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx,
		`SELECT author, body, created_at FROM reservation_notes WHERE reservation_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.CreatedAt = n.CreatedAt.UTC()
		res.Notes = append(res.Notes, n)
	}
	return res, rows.Err()
}

func (t *reservationTx) Transition(ctx context.Context, id string, from, to model.Status, lateCancellation bool) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE reservations
		 SET status = ?, late_cancellation = (late_cancellation OR ?)
		 WHERE id = ? AND status = ?`,
		string(to), lateCancellation, id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *reservationTx) AppendNote(ctx context.Context, id string, note model.Note) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO reservation_notes (reservation_id, author, body, created_at) VALUES (?, ?, ?, ?)`,
		id, note.Author, note.Body, note.CreatedAt.UTC())
	return err
}

// rowScanner covers sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res     model.Reservation
		status  string
		payment string
		starts  time.Time
		ends    time.Time
	)
	err := row.Scan(
		&res.ID, &res.Number, &res.VehicleID, &res.CustomerID, &starts, &ends,
		&res.PickupLocation, &res.DropoffLocation, &res.Price.AmountCents, &res.Price.Currency,
		&status, &payment, &res.LateCancellation, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrReservationNotFound
		}
		return nil, err
	}
	res.Interval = model.NewInterval(starts, ends)
	res.Status = model.Status(status)
	res.PaymentStatus = model.PaymentStatus(payment)
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	return &res, nil
}
