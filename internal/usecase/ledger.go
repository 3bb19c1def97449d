package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/core/validation"
	"github.com/arklim/kether-core/internal/infra/telemetry"
)

// CreditResult describes one committed credit.
type CreditResult struct {
	Entry    domain.LedgerEntry
	Bonuses  []domain.LedgerEntry
	Identity domain.Identity
}

// LedgerAudit compares the folded entries with the stored balance counters.
type LedgerAudit struct {
	Folded     domain.LedgerBalance
	Stored     domain.LedgerBalance
	Consistent bool
}

// LedgerService writes points and their referral bonuses.
type LedgerService struct {
	uow        port.UnitOfWork
	ledger     port.LedgerRepository
	identities port.IdentityRepository
	events     port.EventPublisher
	metrics    *telemetry.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(uow port.UnitOfWork, ledger port.LedgerRepository, identities port.IdentityRepository, events port.EventPublisher, metrics *telemetry.Metrics, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		uow:        uow,
		ledger:     ledger,
		identities: identities,
		events:     events,
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *LedgerService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Credit adds amount to the identity and pays each upline level its bonus, all in one transaction.
func (s *LedgerService) Credit(ctx context.Context, identityID string, amount int64, kind domain.LedgerKind, reference string) (*CreditResult, error) {
	return s.CreditWithin(ctx, identityID, amount, kind, reference, nil)
}

// CreditWithin is Credit with an extra write that commits or rolls back together with the entries.
// within runs first, after the identity row is locked.
func (s *LedgerService) CreditWithin(ctx context.Context, identityID string, amount int64, kind domain.LedgerKind, reference string, within func(ctx context.Context, repos port.Repositories) error) (*CreditResult, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, invalidInput("identity id is required")
	}
	if err := validation.ValidateRange("amount", amount, 1, domain.MaxLedgerAmount); err != nil {
		return nil, err
	}
	if !kind.Valid() || kind.IsDebit() || kind == domain.LedgerKindReferralBonus {
		return nil, invalidInput("kind %q cannot be credited", kind)
	}

	now := s.now()
	result := &CreditResult{}

	err := s.uow.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		if _, err := repos.Identities.LockByID(ctx, identityID); err != nil {
			return err
		}
		if within != nil {
			if err := within(ctx, repos); err != nil {
				return err
			}
		}

		entry := domain.LedgerEntry{
			ID:         uuid.NewString(),
			IdentityID: identityID,
			Amount:     amount,
			Kind:       kind,
			Reference:  reference,
			CreatedAt:  now,
		}

		upline, err := repos.Referrals.ListUpline(ctx, identityID)
		if err != nil {
			return fmt.Errorf("list upline: %w", err)
		}

		source := identityID
		bonuses := make([]domain.LedgerEntry, 0, len(upline))
		for _, edge := range upline {
			bonus := domain.ReferralBonus(edge.Level, amount)
			if bonus == 0 {
				continue
			}
			bonuses = append(bonuses, domain.LedgerEntry{
				ID:         uuid.NewString(),
				IdentityID: edge.ReferrerID,
				Amount:     bonus,
				Kind:       domain.LedgerKindReferralBonus,
				Reference:  reference,
				SourceID:   &source,
				CreatedAt:  now,
			})
		}

		entries := append([]domain.LedgerEntry{entry}, bonuses...)
		if err := repos.Ledger.Append(ctx, entries...); err != nil {
			return fmt.Errorf("append entries: %w", err)
		}

		updated, err := addPointsAndLevel(ctx, repos.Identities, identityID, amount)
		if err != nil {
			return err
		}
		for _, bonus := range bonuses {
			if _, err := addPointsAndLevel(ctx, repos.Identities, bonus.IdentityID, bonus.Amount); err != nil {
				return err
			}
		}

		result.Entry = entry
		result.Bonuses = bonuses
		result.Identity = *updated
		return nil
	})
	if err != nil {
		return nil, storeError("credit", err)
	}

	s.metrics.LedgerCredited(string(kind), amount)
	for _, bonus := range result.Bonuses {
		s.metrics.LedgerCredited(string(bonus.Kind), bonus.Amount)
	}

	if s.events != nil {
		event := domain.LedgerCreditedEvent{
			EventID:    uuid.NewString(),
			IdentityID: identityID,
			Kind:       kind,
			Amount:     amount,
			Reference:  reference,
			Bonuses:    result.Bonuses,
			CreditedAt: now,
		}
		publishEvent(s.logger, "ledger.credited", func() error {
			return s.events.PublishLedgerCredited(ctx, event)
		})
	}

	return result, nil
}

func addPointsAndLevel(ctx context.Context, identities port.IdentityRepository, id string, amount int64) (*domain.Identity, error) {
	updated, err := identities.AddPoints(ctx, id, amount)
	if err != nil {
		return nil, fmt.Errorf("add points: %w", err)
	}
	if level := domain.LevelForPoints(updated.TotalPoints); level != updated.Level {
		if err := identities.UpdateLevel(ctx, id, level); err != nil {
			return nil, fmt.Errorf("update level: %w", err)
		}
		updated.Level = level
	}
	return updated, nil
}

// Spend debits available points when the balance covers amount.
func (s *LedgerService) Spend(ctx context.Context, identityID string, amount int64, reference string) (*domain.LedgerEntry, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, invalidInput("identity id is required")
	}
	if err := validation.ValidateRange("amount", amount, 1, domain.MaxLedgerAmount); err != nil {
		return nil, err
	}

	entry := domain.LedgerEntry{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Amount:     -amount,
		Kind:       domain.LedgerKindSpend,
		Reference:  reference,
		CreatedAt:  s.now(),
	}

	err := s.uow.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		ok, err := repos.Identities.DebitAvailable(ctx, identityID, amount)
		if err != nil {
			return fmt.Errorf("debit: %w", err)
		}
		if !ok {
			if _, err := repos.Identities.GetByID(ctx, identityID); err != nil {
				return err
			}
			return domain.ErrInsufficientPoints
		}
		return repos.Ledger.Append(ctx, entry)
	})
	if err != nil {
		return nil, storeError("spend", err)
	}

	return &entry, nil
}

// Balance folds the identity's ledger entries.
func (s *LedgerService) Balance(ctx context.Context, identityID string) (domain.LedgerBalance, error) {
	entries, err := s.ledger.ListByIdentity(ctx, identityID)
	if err != nil {
		return domain.LedgerBalance{}, storeError("balance", err)
	}
	return domain.Fold(entries), nil
}

// Entries returns the identity's ledger entries, newest first.
func (s *LedgerService) Entries(ctx context.Context, identityID string) ([]domain.LedgerEntry, error) {
	entries, err := s.ledger.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, storeError("list entries", err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// Audit checks that the stored counters equal the fold of the entries.
func (s *LedgerService) Audit(ctx context.Context, identityID string) (*LedgerAudit, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, storeError("audit", err)
	}
	folded, err := s.Balance(ctx, identityID)
	if err != nil {
		return nil, err
	}

	stored := domain.LedgerBalance{Total: identity.TotalPoints, Available: identity.AvailablePoints}
	audit := &LedgerAudit{Folded: folded, Stored: stored, Consistent: folded == stored}
	if !audit.Consistent {
		s.logger.Error("Ledger counters diverge from entries",
			zap.String("identity_id", identityID),
			zap.Int64("folded_available", folded.Available),
			zap.Int64("stored_available", stored.Available),
		)
	}
	return audit, nil
}

// isConflict reports unique violations surfaced by the repositories.
func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}
