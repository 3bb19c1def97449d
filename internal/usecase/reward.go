package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/infra/config"
)

// DefaultSpinTable is the weighted payout table for the daily spin.
var DefaultSpinTable = []domain.SpinOutcome{
	{Amount: 10, Weight: 40},
	{Amount: 25, Weight: 30},
	{Amount: 50, Weight: 18},
	{Amount: 100, Weight: 9},
	{Amount: 250, Weight: 3},
}

// RewardService pays once-per-period rewards through the ledger.
type RewardService struct {
	ledger      *LedgerService
	locks       port.ClaimLockStore
	dailyAmount int64
	period      time.Duration
	spinTable   []domain.SpinOutcome
	pick        func(n int) int
	logger      *zap.Logger
	now         func() time.Time
}

// NewRewardService constructs a RewardService.
func NewRewardService(ledger *LedgerService, locks port.ClaimLockStore, cfg config.RewardSettings, logger *zap.Logger) *RewardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RewardService{
		ledger:      ledger,
		locks:       locks,
		dailyAmount: cfg.DailyRitualAmount,
		period:      cfg.ClaimPeriod,
		spinTable:   DefaultSpinTable,
		pick:        rand.IntN,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.dailyAmount <= 0 {
		s.dailyAmount = 50
	}
	if s.period <= 0 {
		s.period = 24 * time.Hour
	}
	return s
}

// WithClock overrides the internal clock for deterministic tests.
func (s *RewardService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithPicker replaces the random source used by the spin.
func (s *RewardService) WithPicker(pick func(n int) int) {
	if pick != nil {
		s.pick = pick
	}
}

// Claim credits action's reward at most once per period. Lock store errors fail closed.
func (s *RewardService) Claim(ctx context.Context, identityID string, action domain.RewardAction) (*domain.RewardClaim, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, invalidInput("identity id is required")
	}
	if action != domain.RewardDailyRitual && action != domain.RewardSpin {
		return nil, invalidInput("action %q is not claimable", action)
	}

	key := "reward:" + string(action) + ":" + identityID
	acquired, remaining, err := s.locks.Acquire(ctx, key, s.period)
	if err != nil {
		return nil, fmt.Errorf("claim lock: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if !acquired {
		return nil, &ClaimCooldownError{Action: action, RetryAfter: remaining}
	}

	amount := s.dailyAmount
	if action == domain.RewardSpin {
		amount = s.spin()
	}

	if _, err := s.ledger.Credit(ctx, identityID, amount, domain.LedgerKindReward, string(action)); err != nil {
		if releaseErr := s.locks.Release(ctx, key); releaseErr != nil {
			s.logger.Warn("Failed to release claim lock", zap.String("action", string(action)), zap.Error(releaseErr))
		}
		return nil, err
	}

	now := s.now()
	return &domain.RewardClaim{
		Action:     action,
		IdentityID: identityID,
		Amount:     amount,
		ClaimedAt:  now,
		NextAt:     now.Add(s.period),
	}, nil
}

func (s *RewardService) spin() int64 {
	total := 0
	for _, outcome := range s.spinTable {
		total += outcome.Weight
	}
	if total <= 0 {
		return s.dailyAmount
	}

	roll := s.pick(total)
	for _, outcome := range s.spinTable {
		if roll < outcome.Weight {
			return outcome.Amount
		}
		roll -= outcome.Weight
	}
	return s.spinTable[len(s.spinTable)-1].Amount
}
