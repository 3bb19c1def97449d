package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/infra/config"
)

// SweepSummary reports one reconciliation pass.
type SweepSummary struct {
	Checked    int
	Mismatches int
	Settled    int
}

// ReconciliationSweeper periodically settles stale pending transactions and reconciles
// identities with recent ledger activity.
type ReconciliationSweeper struct {
	tracker *TransactionTracker
	ledger  port.LedgerRepository
	cfg     config.ReconciliationSettings
	logger  *zap.Logger
	now     func() time.Time
}

// NewReconciliationSweeper constructs a ReconciliationSweeper.
func NewReconciliationSweeper(tracker *TransactionTracker, ledger port.LedgerRepository, cfg config.ReconciliationSettings, logger *zap.Logger) *ReconciliationSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.PendingGrace <= 0 {
		cfg.PendingGrace = 2 * time.Minute
	}
	return &ReconciliationSweeper{
		tracker: tracker,
		ledger:  ledger,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ReconciliationSweeper) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *ReconciliationSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("Reconciliation sweeper started", zap.Duration("interval", s.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reconciliation sweeper stopped")
			return
		case <-ticker.C:
			summary, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Warn("Reconciliation sweep incomplete", zap.Error(err))
			}
			s.logger.Info("Reconciliation sweep finished",
				zap.Int("checked", summary.Checked),
				zap.Int("mismatches", summary.Mismatches),
				zap.Int("settled", summary.Settled),
			)
		}
	}
}

// SweepOnce runs one pass. Mismatches are reported by the tracker, never corrected.
func (s *ReconciliationSweeper) SweepOnce(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary
	now := s.now()

	settled, err := s.tracker.CheckPending(ctx, now.Add(-s.cfg.PendingGrace), s.cfg.BatchSize)
	summary.Settled = settled
	if err != nil {
		return summary, err
	}

	ids, err := s.ledger.ActiveIdentitiesSince(ctx, now.Add(-s.cfg.Lookback), s.cfg.BatchSize)
	if err != nil {
		return summary, storeError("active identities", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		report, err := s.tracker.ValidateUserTransactions(ctx, id)
		if err != nil {
			return summary, err
		}
		summary.Checked++
		if !report.Consistent {
			summary.Mismatches++
		}
	}

	return summary, nil
}
