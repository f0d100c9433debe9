package core

// scheduler.go evicts idle sessions. It runs one sweep at start and then
// every interval until ctx is cancelled. A failed sweep is logged and the
// next tick tries again.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when StartSweeper gets a non-positive interval.
const DefaultSweepInterval = 10 * time.Minute

// StartSweeper blocks, sweeping idle sessions every interval, until ctx ends.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("session sweeper started",
		"interval", interval.String(),
		"ttl", s.opts.SessionTTL.String(),
	)

	s.runSweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Service) runSweep(ctx context.Context) {
	start := time.Now()
	evicted, purged, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}
	if evicted > 0 || purged > 0 {
		slog.Info("session sweep completed",
			"evicted", evicted,
			"purged", purged,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Sweep drops in-memory sessions idle longer than the TTL and purges stale
// records from the store. It returns both counts.
func (s *Service) Sweep(ctx context.Context) (evicted int, purged int64, err error) {
	cutoff := s.now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.mu.RLock()
		idle := sess.touched.Before(cutoff)
		sess.mu.RUnlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	s.mu.Unlock()

	purged, err = s.store.DeleteIdle(ctx, cutoff)
	return evicted, purged, err
}
