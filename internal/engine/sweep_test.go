package engine

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivoro/vehicle-rental/internal/model"
)

func TestTransitionOnSchedule(t *testing.T) {
	eng, _, catalog, _, clock := newTestEngine(Options{})
	ctx := context.Background()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)
	_, err = eng.ConfirmBooking(ctx, partner, res.ID)
	require.NoError(t, err)

	// Nothing is due yet.
	started, completed, err := eng.TransitionOnSchedule(ctx)
	require.NoError(t, err)
	assert.Zero(t, started)
	assert.Zero(t, completed)

	// The pickup time arrives.
	clock.Set(at("2025-06-01T10:00:00Z"))
	started, completed, err = eng.TransitionOnSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Zero(t, completed)

	got, err := eng.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
	last := got.Notes[len(got.Notes)-1]
	assert.Equal(t, "system", last.Author)
	assert.Equal(t, "rental started", last.Body)

	// The dropoff time passes.
	clock.Set(at("2025-06-03T10:00:00Z"))
	started, completed, err = eng.TransitionOnSchedule(ctx)
	require.NoError(t, err)
	assert.Zero(t, started)
	assert.Equal(t, 1, completed)

	got, err = eng.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestTransitionOnScheduleIdempotent(t *testing.T) {
	eng, _, catalog, _, clock := newTestEngine(Options{})
	ctx := context.Background()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)
	_, err = eng.ConfirmBooking(ctx, partner, res.ID)
	require.NoError(t, err)

	clock.Set(at("2025-06-01T10:00:00Z"))
	started, _, err := eng.TransitionOnSchedule(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, started)

	first, err := eng.Reservation(ctx, res.ID)
	require.NoError(t, err)

	// A second sweep with no elapsed time changes nothing.
	started, completed, err := eng.TransitionOnSchedule(ctx)
	require.NoError(t, err)
	assert.Zero(t, started)
	assert.Zero(t, completed)

	second, err := eng.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTransitionOnScheduleLeavesOperatorAdvancesAlone(t *testing.T) {
	eng, _, catalog, _, clock := newTestEngine(Options{})
	ctx := context.Background()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)
	_, err = eng.ConfirmBooking(ctx, partner, res.ID)
	require.NoError(t, err)

	// The operator hands over the keys before the sweep runs.
	clock.Set(at("2025-06-01T10:00:00Z"))
	_, err = eng.StartBooking(ctx, partner, res.ID)
	require.NoError(t, err)

	started, completed, err := eng.TransitionOnSchedule(ctx)
	require.NoError(t, err)
	assert.Zero(t, started)
	assert.Zero(t, completed)
}

func TestSweeperRun(t *testing.T) {
	eng, _, catalog, _, clock := newTestEngine(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := eng.CreateBooking(ctx, customer, createInput(401, catalog, "2025-06-01T10:00:00Z", "2025-06-03T10:00:00Z"))
	require.NoError(t, err)
	_, err = eng.ConfirmBooking(ctx, partner, res.ID)
	require.NoError(t, err)
	clock.Set(at("2025-06-01T10:00:00Z"))

	s := &Sweeper{
		Engine:   eng,
		Interval: 10 * time.Millisecond,
		Log:      logrus.NewEntry(newTestLogger()),
	}
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := eng.Reservation(context.Background(), res.ID)
		return err == nil && got.Status == model.StatusInProgress
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
