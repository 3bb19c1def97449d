package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/infra/config"
)

func TestSweepOnceSettlesAndReconciles(t *testing.T) {
	f := newChainFixture(t, "1000")
	ctx := context.Background()
	seedIdentity(f.store, "id-2", walletB, "KC000002")

	if _, err := f.ledger.Credit(ctx, "id-1", 50, domain.LedgerKindMint, "mint:a"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if _, err := f.ledger.Credit(ctx, "id-2", 70, domain.LedgerKindMint, "mint:b"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	f.pendingMint(t, hashA, "50")
	f.chain.receipts[hashA] = domain.ChainReceipt{Found: true, Succeeded: true, BlockNumber: 5}

	sweeper := NewReconciliationSweeper(f.tracker, memLedger{f.store}, config.ReconciliationSettings{
		Lookback:     time.Hour,
		PendingGrace: time.Minute,
		BatchSize:    10,
	}, zaptest.NewLogger(t))
	sweeper.WithClock(func() time.Time { return chainNow.Add(5 * time.Minute) })

	summary, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}
	if summary.Settled != 1 || summary.Checked != 2 || summary.Mismatches != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.events.mismatches) != 1 || f.events.mismatches[0].IdentityID != "id-2" {
		t.Fatalf("expected mismatch for id-2, got %+v", f.events.mismatches)
	}
}

func TestSweepOnceSkipsRecentPending(t *testing.T) {
	f := newChainFixture(t, "1000")
	f.pendingMint(t, hashA, "50")
	f.chain.receipts[hashA] = domain.ChainReceipt{Found: true, Succeeded: true, BlockNumber: 5}

	sweeper := NewReconciliationSweeper(f.tracker, memLedger{f.store}, config.ReconciliationSettings{PendingGrace: 10 * time.Minute}, zaptest.NewLogger(t))
	sweeper.WithClock(func() time.Time { return chainNow.Add(time.Minute) })

	summary, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}
	if summary.Settled != 0 {
		t.Fatalf("expected transaction inside grace period to stay pending, got %+v", summary)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newChainFixture(t, "1000")
	sweeper := NewReconciliationSweeper(f.tracker, memLedger{f.store}, config.ReconciliationSettings{Interval: time.Millisecond}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
