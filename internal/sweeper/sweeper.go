package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/casino-royal/cashier/internal/ledger"
)

// Sweeper cancels pending transactions that were abandoned before payment.
// Cancellation goes through the same store-level status guard as completion,
// so a webhook racing the sweep still resolves to exactly one terminal state.
type Sweeper struct {
	store    ledger.Store
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// New builds a sweeper. Interval is how often the sweep runs; maxAge is how
// long a transaction may stay pending before cancellation.
func New(store ledger.Store, interval, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, maxAge: maxAge, logger: logger}
}

// Run sweeps on a ticker until the context is cancelled. Intended to run in
// its own goroutine from main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single cancellation pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	cancelled, err := s.store.CancelStale(ctx, cutoff)
	if err != nil {
		s.logger.Error("stale pending sweep failed", "error", err)
		return
	}
	if cancelled > 0 {
		s.logger.Info("cancelled stale pending transactions", "count", cancelled, "older_than", cutoff)
	}
}
