package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sweeper runs TransitionOnSchedule on a fixed interval.  When a
// Redis client is provided, a SET NX leader lock keeps the sweep
// mutually exclusive across engine instances so multi-process
// deployments do not emit duplicate side effects; without Redis the
// sweep runs unguarded, which is only safe for a single instance.
type Sweeper struct {
	Engine   *Engine
	Interval time.Duration
	Locker   *redis.Client
	LockTTL  time.Duration
	Log      *logrus.Entry
}

const sweepLockKey = "reservation:sweep:leader"

// Run ticks until ctx is cancelled.  The first sweep fires
// immediately.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if !s.acquireLeader(ctx) {
		return
	}
	started, completed, err := s.Engine.TransitionOnSchedule(ctx)
	if err != nil {
		s.Log.WithError(err).Warn("schedule sweep failed")
		return
	}
	if started > 0 || completed > 0 {
		s.Log.WithFields(logrus.Fields{"started": started, "completed": completed}).Info("schedule sweep advanced reservations")
	}
}

// acquireLeader takes the cross-instance lock for one tick.  The TTL
// outlives a normal sweep by a wide margin; a crashed leader's lock
// simply expires.
func (s *Sweeper) acquireLeader(ctx context.Context) bool {
	if s.Locker == nil {
		return true
	}
	ok, err := s.Locker.SetNX(ctx, sweepLockKey, time.Now().UTC().Format(time.RFC3339), s.LockTTL).Result()
	if err != nil {
		s.Log.WithError(err).Warn("sweep leader lock unavailable, skipping tick")
		return false
	}
	return ok
}
