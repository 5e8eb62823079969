package engine

import (
	"context"
	"sync"
	"time"

	"github.com/drivoro/vehicle-rental/internal/model"
	"github.com/drivoro/vehicle-rental/internal/queue"
)

// memStore is an in-memory Store for engine tests.  WithVehicle holds
// a per-vehicle mutex for the whole callback, mirroring the advisory
// lock the MySQL store takes, and buffers writes so an error from the
// callback rolls the transaction back.
type memStore struct {
	mu     sync.Mutex
	locks  map[uint64]*sync.Mutex
	rows   map[string]*model.Reservation
	order  []string
	owners map[uint64]uint64 // vehicleID -> partnerID, for ListByPartner
}

func newMemStore(owners map[uint64]uint64) *memStore {
	return &memStore{
		locks:  make(map[uint64]*sync.Mutex),
		rows:   make(map[string]*model.Reservation),
		owners: owners,
	}
}

func (s *memStore) vehicleLock(vehicleID uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[vehicleID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[vehicleID] = l
	}
	return l
}

func (s *memStore) WithVehicle(ctx context.Context, vehicleID uint64, fn func(ctx context.Context, tx Tx) error) error {
	l := s.vehicleLock(vehicleID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, apply := range tx.staged {
		apply()
	}
	return nil
}

func (s *memStore) Reservation(ctx context.Context, id string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *memStore) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error) {
	return s.filter(func(r *model.Reservation) bool { return r.CustomerID == customerID })
}

func (s *memStore) ListByPartner(ctx context.Context, partnerID uint64) ([]model.Reservation, error) {
	return s.filter(func(r *model.Reservation) bool { return s.owners[r.VehicleID] == partnerID })
}

func (s *memStore) Due(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	return s.filter(func(r *model.Reservation) bool {
		return (r.Status == model.StatusConfirmed && !r.Interval.Start.After(now)) ||
			(r.Status == model.StatusInProgress && !r.Interval.End.After(now))
	})
}

func (s *memStore) SetPaymentStatus(ctx context.Context, id string, ps model.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id)
	if err != nil {
		return err
	}
	s.rows[r.ID].PaymentStatus = ps
	return nil
}

func (s *memStore) filter(keep func(*model.Reservation) bool) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, id := range s.order {
		if r := s.rows[id]; keep(r) {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

// get returns a copy; callers must hold s.mu.
func (s *memStore) get(id string) (*model.Reservation, error) {
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	c := clone(r)
	return &c, nil
}

func clone(r *model.Reservation) model.Reservation {
	c := *r
	c.Notes = append([]model.Note(nil), r.Notes...)
	return c
}

// memTx buffers writes until WithVehicle commits them.  Reads see
// committed state, which matches the repeatable view the SQL store
// provides inside one critical section.
type memTx struct {
	s      *memStore
	staged []func()
}

func (t *memTx) ActiveByVehicle(ctx context.Context, vehicleID uint64, excludeID string) ([]model.Reservation, error) {
	return t.s.filter(func(r *model.Reservation) bool {
		return r.VehicleID == vehicleID && r.Status.Blocking() && r.ID != excludeID
	})
}

func (t *memTx) Insert(ctx context.Context, res *model.Reservation) error {
	now := time.Now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now
	c := clone(res)
	t.staged = append(t.staged, func() {
		t.s.rows[c.ID] = &c
		t.s.order = append(t.s.order, c.ID)
	})
	return nil
}

func (t *memTx) Reservation(ctx context.Context, id string) (*model.Reservation, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.get(id)
}

func (t *memTx) Transition(ctx context.Context, id string, from, to model.Status, lateCancellation bool) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.rows[id]
	if !ok || r.Status != from {
		return false, nil
	}
	t.staged = append(t.staged, func() {
		r.Status = to
		r.LateCancellation = r.LateCancellation || lateCancellation
		r.UpdatedAt = time.Now().UTC()
	})
	return true, nil
}

func (t *memTx) AppendNote(ctx context.Context, id string, note model.Note) error {
	t.staged = append(t.staged, func() {
		if r, ok := t.s.rows[id]; ok {
			r.Notes = append(r.Notes, note)
		}
	})
	return nil
}

// memCatalog is a fixed vehicle catalog for tests.
type memCatalog struct {
	owners map[uint64]uint64
	cards  map[uint64]model.RateCard
}

func (c *memCatalog) RateCard(ctx context.Context, vehicleID uint64) (model.RateCard, error) {
	return c.cards[vehicleID], nil
}

func (c *memCatalog) OwnerOf(ctx context.Context, vehicleID uint64) (uint64, error) {
	return c.owners[vehicleID], nil
}

// recordingNotifier collects published intents.  Publishing happens on
// a background goroutine, so assertions go through Eventually.
type recordingNotifier struct {
	mu      sync.Mutex
	intents []queue.Intent
}

func (n *recordingNotifier) Publish(ctx context.Context, intent queue.Intent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
	return nil
}

func (n *recordingNotifier) queues() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, i := range n.intents {
		out = append(out, i.QueueName())
	}
	return out
}
