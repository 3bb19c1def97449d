package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/infra/config"
)

func newRewardFixture(t *testing.T) (*chainFixture, *memLocks, *RewardService) {
	t.Helper()
	f := newChainFixture(t, "1000")
	locks := newMemLocks()
	rewards := NewRewardService(f.ledger, locks, config.RewardSettings{DailyRitualAmount: 50, ClaimPeriod: 24 * time.Hour}, zaptest.NewLogger(t))
	rewards.WithClock(func() time.Time { return f.now })
	return f, locks, rewards
}

func TestClaimDailyRitualOncePerPeriod(t *testing.T) {
	f, locks, rewards := newRewardFixture(t)
	ctx := context.Background()

	claim, err := rewards.Claim(ctx, "id-1", domain.RewardDailyRitual)
	if err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}
	if claim.Amount != 50 || !claim.NextAt.Equal(chainNow.Add(24*time.Hour)) {
		t.Fatalf("unexpected claim: %+v", claim)
	}
	if got := f.store.identity("id-1").AvailablePoints; got != 50 {
		t.Fatalf("expected 50 available points, got %d", got)
	}

	_, err = rewards.Claim(ctx, "id-1", domain.RewardDailyRitual)
	var cooldown *ClaimCooldownError
	if !errors.As(err, &cooldown) || !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if cooldown.RetryAfter != 24*time.Hour {
		t.Fatalf("unexpected retry after: %s", cooldown.RetryAfter)
	}

	if _, err := rewards.Claim(ctx, "id-1", domain.RewardSpin); err != nil {
		t.Fatalf("spin has its own period, got %v", err)
	}
	if len(locks.held) != 2 {
		t.Fatalf("expected two held locks, got %d", len(locks.held))
	}
}

func TestClaimSpinUsesWeightedTable(t *testing.T) {
	cases := []struct {
		roll int
		want int64
	}{
		{0, 10},
		{39, 10},
		{40, 25},
		{70, 50},
		{88, 100},
		{97, 250},
		{99, 250},
	}

	for _, tc := range cases {
		_, _, rewards := newRewardFixture(t)
		roll := tc.roll
		rewards.WithPicker(func(n int) int {
			if n != 100 {
				t.Fatalf("expected total weight 100, got %d", n)
			}
			return roll
		})

		claim, err := rewards.Claim(context.Background(), "id-1", domain.RewardSpin)
		if err != nil {
			t.Fatalf("Claim returned error: %v", err)
		}
		if claim.Amount != tc.want {
			t.Fatalf("roll %d: expected %d, got %d", tc.roll, tc.want, claim.Amount)
		}
	}
}

func TestClaimRejectsUnknownAction(t *testing.T) {
	_, _, rewards := newRewardFixture(t)

	if _, err := rewards.Claim(context.Background(), "id-1", domain.RewardSocial); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClaimFailsClosedWhenLockStoreDown(t *testing.T) {
	f, locks, rewards := newRewardFixture(t)
	locks.err = errStoreDown

	if _, err := rewards.Claim(context.Background(), "id-1", domain.RewardDailyRitual); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if got := f.store.identity("id-1").AvailablePoints; got != 0 {
		t.Fatalf("expected no credit, got %d", got)
	}
}

func TestClaimReleasesLockWhenCreditFails(t *testing.T) {
	f, locks, rewards := newRewardFixture(t)
	ctx := context.Background()

	if _, err := rewards.Claim(ctx, "id-9", domain.RewardDailyRitual); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(locks.held) != 0 {
		t.Fatalf("expected lock to be released, got %v", locks.held)
	}

	seedIdentity(f.store, "id-9", walletE, "KC000009")
	if _, err := rewards.Claim(ctx, "id-9", domain.RewardDailyRitual); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}
