package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/laguz/internal/ledger"
)

// Sweeper periodically reaps expired idempotency records. Expired rows are
// already invisible to the guard, so the sweep only reclaims space; it may
// lag without affecting correctness.
type Sweeper struct {
	db       *ledger.DB
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper with the given interval.
func NewSweeper(db *ledger.DB, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{db: db, interval: interval, logger: logger}
}

// Run sweeps immediately, then on every tick, until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sweeper: started", slog.String("interval", s.interval.String()))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper: stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.db.SweepExpiredIdempotency(ctx, time.Now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("sweeper: sweep failed", slog.String("error", err.Error()))
		}
		return
	}
	if n > 0 {
		s.logger.Info("sweeper: reaped expired records", slog.Int64("count", n))
	}
}
