package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivoro/vehicle-rental/internal/model"
	"github.com/drivoro/vehicle-rental/internal/pricing"
)

// Test fixture: vehicles 401 and 402 belong to partner 4, vehicle 901
// to partner 9.  Customer 17 books, the clock starts at 2025-05-01.
var (
	partner  = model.Actor{ID: 4, Role: model.RolePartner}
	rival    = model.Actor{ID: 9, Role: model.RolePartner}
	admin    = model.Actor{ID: 1, Role: model.RoleAdmin}
	customer = model.Actor{ID: 17, Role: model.RoleCustomer}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func testCatalog() *memCatalog {
	daily := int64(10000)
	weekly := int64(60000)
	return &memCatalog{
		owners: map[uint64]uint64{401: 4, 402: 4, 901: 9},
		cards: map[uint64]model.RateCard{
			401: {DailyRateCents: daily, WeeklyRateCents: &weekly, Currency: "EUR"},
			402: {DailyRateCents: daily, Currency: "EUR"},
			901: {DailyRateCents: daily, Currency: "EUR"},
		},
	}
}

func newTestEngine(opts Options) (*Engine, *memStore, *memCatalog, *recordingNotifier, *fakeClock) {
	clock := &fakeClock{t: at("2025-05-01T00:00:00Z")}
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	catalog := testCatalog()
	store := newMemStore(catalog.owners)
	notifier := &recordingNotifier{}
	log := logrus.NewEntry(newTestLogger())
	return New(store, catalog, notifier, log, opts), store, catalog, notifier, clock
}

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func createInput(vehicleID uint64, catalog *memCatalog, start, end string) CreateBookingInput {
	return CreateBookingInput{
		VehicleID:       vehicleID,
		Interval:        model.NewInterval(at(start), at(end)),
		PickupLocation:  "BER-HBF",
		DropoffLocation: "BER-TXL",
		RateCard:        catalog.cards[vehicleID],
	}
}

func TestCreateBooking(t *testing.T) {
	eng, _, catalog, notifier, _ := newTestEngine(Options{})
	ctx := context.Background()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.True(t, strings.HasPrefix(res.Number, "BK-"), res.Number)
	assert.Equal(t, uint64(401), res.VehicleID)
	assert.Equal(t, customer.ID, res.CustomerID)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, model.PaymentUnpaid, res.PaymentStatus)
	assert.Equal(t, int64(20000), res.Price.AmountCents)
	assert.Equal(t, "EUR", res.Price.Currency)
	assert.False(t, res.LateCancellation)

	got, err := eng.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)

	require.Eventually(t, func() bool {
		return len(notifier.queues()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"booking.created"}, notifier.queues())
}

func TestCreateBookingValidation(t *testing.T) {
	eng, _, catalog, _, _ := newTestEngine(Options{})
	ctx := context.Background()

	t.Run("end before start", func(t *testing.T) {
		_, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-03T10:00:00Z", "2025-06-01T10:00:00Z"))
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})
	t.Run("zero-length interval", func(t *testing.T) {
		_, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-01T10:00:00Z"))
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})
	t.Run("start in the past", func(t *testing.T) {
		_, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-04-01T10:00:00Z", "2025-04-03T10:00:00Z"))
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})
	t.Run("unpriceable rate card", func(t *testing.T) {
		in := createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z")
		in.RateCard = model.RateCard{Currency: "EUR"}
		_, err := eng.CreateBooking(ctx, customer, in)
		assert.ErrorIs(t, err, pricing.ErrInvalidRateCard)
	})
}

func TestCreateBookingBoundaryTouch(t *testing.T) {
	eng, _, catalog, _, _ := newTestEngine(Options{})
	ctx := context.Background()

	first, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-04T10:00:00Z"))
	require.NoError(t, err)
	_, err = eng.ConfirmBooking(ctx, partner, first.ID)
	require.NoError(t, err)

	// Pickup at the exact moment of the previous dropoff is fine.
	_, err = eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-04T10:00:00Z", "2025-06-06T10:00:00Z"))
	require.NoError(t, err)

	// A real overlap is rejected with the conflicting reservation attached.
	_, err = eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-03T00:00:00Z", "2025-06-05T00:00:00Z"))
	var vna *VehicleNotAvailableError
	require.ErrorAs(t, err, &vna)
	assert.Equal(t, uint64(401), vna.VehicleID)
	require.Len(t, vna.Conflicts, 1)
	assert.Equal(t, first.ID, vna.Conflicts[0].ID)

	// The same interval on another vehicle is unaffected.
	_, err = eng.CreateBooking(ctx, customer, createInput(402, catalog, "2025-06-03T00:00:00Z", "2025-06-05T00:00:00Z"))
	require.NoError(t, err)
}

func TestCreateBookingConcurrentOneWinner(t *testing.T) {
	eng, _, catalog, _, _ := newTestEngine(Options{})
	ctx := context.Background()
	in := createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z")

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.CreateBooking(ctx, customer, in)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflict int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		var vna *VehicleNotAvailableError
		require.ErrorAs(t, err, &vna)
		conflict++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)
}

func TestConfirmBooking(t *testing.T) {
	eng, _, catalog, notifier, _ := newTestEngine(Options{})
	ctx := context.Background()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)

	confirmed, err := eng.ConfirmBooking(ctx, partner, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	// Price and payment status survive confirmation untouched.
	assert.Equal(t, res.Price, confirmed.Price)
	assert.Equal(t, model.PaymentUnpaid, confirmed.PaymentStatus)
	require.NotEmpty(t, confirmed.Notes)
	last := confirmed.Notes[len(confirmed.Notes)-1]
	assert.Equal(t, "partner:4", last.Author)
	assert.Equal(t, "booking confirmed", last.Body)

	require.Eventually(t, func() bool {
		return len(notifier.queues()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, notifier.queues(), "booking.confirmed")

	_, err = eng.ConfirmBooking(ctx, partner, res.ID)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
}

func TestConfirmBookingUnauthorizedPartner(t *testing.T) {
	eng, _, catalog, _, _ := newTestEngine(Options{})
	ctx := context.Background()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)

	_, err = eng.ConfirmBooking(ctx, rival, res.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := eng.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestConfirmBookingRechecksAvailability(t *testing.T) {
	eng, store, _, _, _ := newTestEngine(Options{})
	ctx := context.Background()

	// An overlapping CONFIRMED row seeded behind the engine's back,
	// standing in for a write that bypassed the vehicle lock.  The
	// pending booking passed its availability check at creation, but
	// confirmation re-checks and refuses to double-book.
	iv := model.NewInterval(at("2025-06-01T10:00:00Z"), at("2025-06-03T10:00:00Z"))
	pending := &model.Reservation{ID: "res-a", Number: "BK-A", VehicleID: 401, CustomerID: 17,
		Interval: iv, Status: model.StatusPending, PaymentStatus: model.PaymentUnpaid}
	taken := &model.Reservation{ID: "res-b", Number: "BK-B", VehicleID: 401, CustomerID: 23,
		Interval: iv, Status: model.StatusConfirmed, PaymentStatus: model.PaymentUnpaid}
	store.rows[pending.ID] = pending
	store.rows[taken.ID] = taken
	store.order = append(store.order, pending.ID, taken.ID)

	_, err := eng.ConfirmBooking(ctx, partner, pending.ID)
	var vna *VehicleNotAvailableError
	require.ErrorAs(t, err, &vna)
	require.Len(t, vna.Conflicts, 1)
	assert.Equal(t, taken.ID, vna.Conflicts[0].ID)

	got, err := eng.Reservation(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestRejectBooking(t *testing.T) {
	eng, _, catalog, notifier, _ := newTestEngine(Options{})
	ctx := context.Background()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)

	rejected, err := eng.RejectBooking(ctx, partner, res.ID, "vehicle in maintenance")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	last := rejected.Notes[len(rejected.Notes)-1]
	assert.Equal(t, "booking rejected: vehicle in maintenance", last.Body)

	// A rejected booking frees the interval.
	_, err = eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(notifier.queues()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, notifier.queues(), "booking.rejected")
}

func TestCancelBooking(t *testing.T) {
	t.Run("early cancellation by customer", func(t *testing.T) {
		eng, _, catalog, _, _ := newTestEngine(Options{})
		ctx := context.Background()
		res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
		require.NoError(t, err)

		cancelled, err := eng.CancelBooking(ctx, customer, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, cancelled.Status)
		assert.False(t, cancelled.LateCancellation)
		assert.Equal(t, res.Price, cancelled.Price)
	})

	t.Run("late cancellation is flagged", func(t *testing.T) {
		eng, _, catalog, _, clock := newTestEngine(Options{})
		ctx := context.Background()
		res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
		require.NoError(t, err)
		_, err = eng.ConfirmBooking(ctx, partner, res.ID)
		require.NoError(t, err)

		clock.Set(at("2025-05-31T00:00:00Z")) // 34h before pickup
		cancelled, err := eng.CancelBooking(ctx, customer, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, cancelled.Status)
		assert.True(t, cancelled.LateCancellation)
		last := cancelled.Notes[len(cancelled.Notes)-1]
		assert.Equal(t, "booking cancelled (late)", last.Body)
	})

	t.Run("cutoff is configurable", func(t *testing.T) {
		eng, _, catalog, _, clock := newTestEngine(Options{CancellationCutoff: 24 * time.Hour})
		ctx := context.Background()
		res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
		require.NoError(t, err)

		clock.Set(at("2025-05-31T00:00:00Z")) // 34h out, beyond a 24h cutoff
		cancelled, err := eng.CancelBooking(ctx, customer, res.ID)
		require.NoError(t, err)
		assert.False(t, cancelled.LateCancellation)
	})

	t.Run("foreign customer cannot cancel", func(t *testing.T) {
		eng, _, catalog, _, _ := newTestEngine(Options{})
		ctx := context.Background()
		res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
		require.NoError(t, err)

		_, err = eng.CancelBooking(ctx, model.Actor{ID: 23, Role: model.RoleCustomer}, res.ID)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("cancelled booking frees the interval", func(t *testing.T) {
		eng, _, catalog, _, _ := newTestEngine(Options{})
		ctx := context.Background()
		res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
		require.NoError(t, err)
		_, err = eng.CancelBooking(ctx, customer, res.ID)
		require.NoError(t, err)

		_, err = eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
		require.NoError(t, err)
	})
}

func TestLifecycleMonotonic(t *testing.T) {
	eng, _, catalog, _, _ := newTestEngine(Options{})
	ctx := context.Background()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)

	// PENDING cannot skip to IN_PROGRESS.
	_, err = eng.StartBooking(ctx, partner, res.ID)
	var ite *IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, model.StatusPending, ite.From)
	assert.Equal(t, model.StatusInProgress, ite.To)

	_, err = eng.ConfirmBooking(ctx, partner, res.ID)
	require.NoError(t, err)
	_, err = eng.StartBooking(ctx, partner, res.ID)
	require.NoError(t, err)
	done, err := eng.CompleteBooking(ctx, admin, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)

	// COMPLETED is terminal; nothing moves it again.
	for _, attempt := range []func() error{
		func() error { _, err := eng.ConfirmBooking(ctx, partner, res.ID); return err },
		func() error { _, err := eng.CancelBooking(ctx, customer, res.ID); return err },
		func() error { _, err := eng.CompleteBooking(ctx, partner, res.ID); return err },
	} {
		err := attempt()
		require.Error(t, err)
	}
	got, err := eng.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestMarkPaymentStatus(t *testing.T) {
	eng, _, catalog, _, _ := newTestEngine(Options{})
	ctx := context.Background()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)

	require.NoError(t, eng.MarkPaymentStatus(ctx, res.ID, model.PaymentPaid))
	got, err := eng.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)

	// Lifecycle transitions never touch the payment status.
	_, err = eng.ConfirmBooking(ctx, partner, res.ID)
	require.NoError(t, err)
	got, err = eng.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)

	assert.Error(t, eng.MarkPaymentStatus(ctx, res.ID, "GONE"))
	assert.ErrorIs(t, eng.MarkPaymentStatus(ctx, "no-such-id", model.PaymentPaid), ErrReservationNotFound)
}

func TestListByCustomerAndPartner(t *testing.T) {
	eng, _, catalog, _, _ := newTestEngine(Options{})
	ctx := context.Background()

	_, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)
	_, err = eng.CreateBooking(ctx, customer, createInput(901, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)

	mine, err := eng.ListByCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := eng.ListByPartner(ctx, 4)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, uint64(401), theirs[0].VehicleID)

	none, err := eng.ListByCustomer(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// stalledStore blocks every read until the context expires, standing
// in for an unresponsive database.
type stalledStore struct {
	*memStore
}

func (s *stalledStore) Reservation(ctx context.Context, id string) (*model.Reservation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStoreTimeout(t *testing.T) {
	catalog := testCatalog()
	store := &stalledStore{memStore: newMemStore(catalog.owners)}
	eng := New(store, catalog, nil, logrus.NewEntry(newTestLogger()), Options{StoreTimeout: 20 * time.Millisecond})

	_, err := eng.Reservation(context.Background(), "res-x")
	assert.ErrorIs(t, err, ErrStoreTimeout)

	_, err = eng.ConfirmBooking(context.Background(), partner, "res-x")
	assert.ErrorIs(t, err, ErrStoreTimeout)
}

// stalledTxStore hands the callback a transaction whose reads block
// until the callback's own context expires.  It only unblocks if the
// deadline-bound context actually reaches the transaction.
type stalledTxStore struct {
	*memStore
}

type stalledTx struct{ Tx }

func (stalledTx) ActiveByVehicle(ctx context.Context, vehicleID uint64, excludeID string) ([]model.Reservation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stalledTxStore) WithVehicle(ctx context.Context, vehicleID uint64, fn func(ctx context.Context, tx Tx) error) error {
	return fn(ctx, stalledTx{})
}

func TestStoreTimeoutCoversTransactionReads(t *testing.T) {
	catalog := testCatalog()
	store := &stalledTxStore{memStore: newMemStore(catalog.owners)}
	eng := New(store, catalog, nil, logrus.NewEntry(newTestLogger()), Options{
		StoreTimeout: 20 * time.Millisecond,
		Now:          func() time.Time { return at("2025-05-01T00:00:00Z") },
	})

	_, err := eng.CreateBooking(context.Background(), customer,
		createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	assert.ErrorIs(t, err, ErrStoreTimeout)
}
