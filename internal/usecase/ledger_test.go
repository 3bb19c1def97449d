package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/kether-core/internal/core/domain"
)

const (
	walletA = "0x1000000000000000000000000000000000000001"
	walletB = "0x2000000000000000000000000000000000000002"
	walletC = "0x3000000000000000000000000000000000000003"
	walletD = "0x4000000000000000000000000000000000000004"
	walletE = "0x5000000000000000000000000000000000000005"
)

type ledgerFixture struct {
	store     *memStore
	events    *recordingPublisher
	ledger    *LedgerService
	referrals *ReferralService
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := newMemStore()
	events := &recordingPublisher{}
	repos := store.repos()
	clock := func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	ledger := NewLedgerService(store, repos.Ledger, repos.Identities, events, nil, zaptest.NewLogger(t))
	ledger.WithClock(clock)
	referrals := NewReferralService(store, repos.Identities, repos.Referrals, repos.Ledger, events, zaptest.NewLogger(t))
	referrals.WithClock(clock)

	return &ledgerFixture{store: store, events: events, ledger: ledger, referrals: referrals}
}

// chain builds A -> B -> C -> D, each referred by the previous one.
func (f *ledgerFixture) chain(t *testing.T) []domain.Identity {
	t.Helper()
	ctx := context.Background()

	a, created, err := f.referrals.CreateIdentity(ctx, walletA, "")
	if err != nil || !created {
		t.Fatalf("create A: %v (created=%v)", err, created)
	}
	ids := []domain.Identity{*a}
	for _, wallet := range []string{walletB, walletC, walletD} {
		next, _, err := f.referrals.CreateIdentity(ctx, wallet, ids[len(ids)-1].ReferralCode)
		if err != nil {
			t.Fatalf("create %s: %v", wallet, err)
		}
		ids = append(ids, *next)
	}
	return ids
}

func TestReferralChainCopiesUpline(t *testing.T) {
	f := newLedgerFixture(t)
	ids := f.chain(t)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]
	ctx := context.Background()

	upline, err := memReferrals{f.store}.ListUpline(ctx, d.ID)
	if err != nil {
		t.Fatalf("ListUpline returned error: %v", err)
	}
	if len(upline) != 3 {
		t.Fatalf("expected 3 upline levels for D, got %d", len(upline))
	}
	want := []string{c.ID, b.ID, a.ID}
	for i, edge := range upline {
		if edge.Level != i+1 || edge.ReferrerID != want[i] {
			t.Fatalf("unexpected edge %d: %+v", i, edge)
		}
	}

	if d.ReferredBy == nil || *d.ReferredBy != c.ID {
		t.Fatalf("expected D to be referred by C, got %v", d.ReferredBy)
	}
	if len(f.events.created) != 4 {
		t.Fatalf("expected 4 identity.created events, got %d", len(f.events.created))
	}
}

func TestCreditPaysUplineBonuses(t *testing.T) {
	f := newLedgerFixture(t)
	ids := f.chain(t)
	a, b, c := ids[0], ids[1], ids[2]
	ctx := context.Background()

	result, err := f.ledger.Credit(ctx, c.ID, 1000, domain.LedgerKindReward, "daily_ritual")
	if err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if len(result.Bonuses) != 2 {
		t.Fatalf("expected 2 bonuses, got %d", len(result.Bonuses))
	}

	if got := f.store.identity(c.ID).AvailablePoints; got != 1000 {
		t.Fatalf("expected C to hold 1000, got %d", got)
	}
	if got := f.store.identity(b.ID).AvailablePoints; got != 100 {
		t.Fatalf("expected B to hold 100, got %d", got)
	}
	if got := f.store.identity(a.ID).AvailablePoints; got != 50 {
		t.Fatalf("expected A to hold 50, got %d", got)
	}
	if got := f.store.identity(c.ID).Level; got != domain.LevelForPoints(1000) {
		t.Fatalf("expected C level %d, got %d", domain.LevelForPoints(1000), got)
	}

	stats, err := f.referrals.GetStats(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetStats returned error: %v", err)
	}
	if stats.Level1Count != 1 || stats.Level2Count != 1 || stats.Level3Count != 1 {
		t.Fatalf("unexpected downline counts: %+v", stats)
	}
	if stats.TotalEarned != 50 {
		t.Fatalf("expected A to have earned 50, got %d", stats.TotalEarned)
	}

	if len(f.events.credited) != 1 || len(f.events.credited[0].Bonuses) != 2 {
		t.Fatalf("expected one ledger.credited event with bonuses, got %+v", f.events.credited)
	}
}

func TestCreditSkipsZeroBonuses(t *testing.T) {
	f := newLedgerFixture(t)
	ids := f.chain(t)

	result, err := f.ledger.Credit(context.Background(), ids[3].ID, 15, domain.LedgerKindReward, "spin")
	if err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	// 10% of 15 floors to 1; 5% and 2% floor to 0.
	if len(result.Bonuses) != 1 || result.Bonuses[0].Amount != 1 || result.Bonuses[0].IdentityID != ids[2].ID {
		t.Fatalf("unexpected bonuses: %+v", result.Bonuses)
	}
}

func TestReferralRejectsUnknownAndMalformedCodes(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	if _, _, err := f.referrals.CreateIdentity(ctx, walletE, "KC000000"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown code, got %v", err)
	}
	if _, _, err := f.referrals.CreateIdentity(ctx, walletE, "bogus"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for malformed code, got %v", err)
	}
	if _, err := (memIdentities{f.store}).GetByWallet(ctx, walletE); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no identity after rejected referral, got %v", err)
	}
}

func TestCreateIdentityReturnsExistingWallet(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	first, created, err := f.referrals.CreateIdentity(ctx, walletA, "")
	if err != nil || !created {
		t.Fatalf("first create: %v", err)
	}
	second, created, err := f.referrals.CreateIdentity(ctx, walletA, "")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected existing identity, got %+v (created=%v)", second, created)
	}
}

func TestSpendRequiresBalance(t *testing.T) {
	f := newLedgerFixture(t)
	seedIdentity(f.store, "id-1", walletA, "KC000001")
	ctx := context.Background()

	if _, err := f.ledger.Credit(ctx, "id-1", 100, domain.LedgerKindMint, "mint"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if _, err := f.ledger.Spend(ctx, "id-1", 60, "shop"); err != nil {
		t.Fatalf("Spend returned error: %v", err)
	}
	if _, err := f.ledger.Spend(ctx, "id-1", 60, "shop"); !errors.Is(err, domain.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if _, err := f.ledger.Spend(ctx, "missing", 1, "shop"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	balance, err := f.ledger.Balance(ctx, "id-1")
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if balance.Available != 40 || balance.Total != 100 {
		t.Fatalf("unexpected balance: %+v", balance)
	}
}

func TestCreditRejectsInvalidKinds(t *testing.T) {
	f := newLedgerFixture(t)
	seedIdentity(f.store, "id-1", walletA, "KC000001")

	for _, kind := range []domain.LedgerKind{domain.LedgerKindSpend, domain.LedgerKindReferralBonus, "bogus"} {
		if _, err := f.ledger.Credit(context.Background(), "id-1", 10, kind, "x"); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", kind, err)
		}
	}
	if _, err := f.ledger.Credit(context.Background(), "id-1", 0, domain.LedgerKindReward, "x"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero amount, got %v", err)
	}
}

func TestCreditRollsBackWhenStoreFails(t *testing.T) {
	f := newLedgerFixture(t)
	seedIdentity(f.store, "id-1", walletA, "KC000001")
	f.store.fail = true

	if _, err := f.ledger.Credit(context.Background(), "id-1", 10, domain.LedgerKindReward, "x"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestFoldMatchesCountersUnderConcurrency(t *testing.T) {
	f := newLedgerFixture(t)
	seedIdentity(f.store, "id-1", walletA, "KC000001")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.ledger.Credit(ctx, "id-1", 10, domain.LedgerKindReward, "concurrent")
		}()
		go func() {
			defer wg.Done()
			_, _ = f.ledger.Spend(ctx, "id-1", 7, "concurrent")
		}()
	}
	wg.Wait()

	audit, err := f.ledger.Audit(ctx, "id-1")
	if err != nil {
		t.Fatalf("Audit returned error: %v", err)
	}
	if !audit.Consistent {
		t.Fatalf("expected fold to equal counters, got %+v", audit)
	}
	if audit.Folded.Total != 200 {
		t.Fatalf("expected total 200, got %d", audit.Folded.Total)
	}
	if audit.Folded.Available < 0 {
		t.Fatalf("available went negative: %d", audit.Folded.Available)
	}
}

func TestLedgerEntriesNewestFirst(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	seedIdentity(f.store, "id-1", walletA, "KC000001")

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, amount := range []int64{5, 7, 9} {
		at := now.Add(time.Duration(i) * time.Minute)
		f.ledger.WithClock(func() time.Time { return at })
		if _, err := f.ledger.Credit(ctx, "id-1", amount, domain.LedgerKindReward, "r"); err != nil {
			t.Fatalf("Credit returned error: %v", err)
		}
	}

	entries, err := f.ledger.Entries(ctx, "id-1")
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if len(entries) != 3 || entries[0].Amount != 9 || entries[2].Amount != 5 {
		t.Fatalf("expected newest first, got %+v", entries)
	}
}
