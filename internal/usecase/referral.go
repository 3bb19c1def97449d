package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/core/validation"
	"github.com/arklim/kether-core/internal/infra/logger"
	"github.com/arklim/kether-core/internal/infra/security"
)

const referralCodeAttempts = 5

// ReferralService creates identities with their referral upline and reports downline stats.
type ReferralService struct {
	uow        port.UnitOfWork
	identities port.IdentityRepository
	referrals  port.ReferralRepository
	ledger     port.LedgerRepository
	events     port.EventPublisher
	logger     *zap.Logger
	newCode    func() (string, error)
	now        func() time.Time
}

// NewReferralService constructs a ReferralService.
func NewReferralService(uow port.UnitOfWork, identities port.IdentityRepository, referrals port.ReferralRepository, ledger port.LedgerRepository, events port.EventPublisher, logger *zap.Logger) *ReferralService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralService{
		uow:        uow,
		identities: identities,
		referrals:  referrals,
		ledger:     ledger,
		events:     events,
		logger:     logger,
		newCode:    func() (string, error) { return security.GenerateReferralCode(validation.ReferralCodePrefix) },
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ReferralService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// CreateIdentity inserts a new identity for wallet. A non-empty referralCode links it to the
// referrer and copies the referrer's upline one level deeper, in the same transaction.
// When another request created the wallet first, that identity is returned with created=false.
func (s *ReferralService) CreateIdentity(ctx context.Context, wallet, referralCode string) (*domain.Identity, bool, error) {
	wallet, err := validation.NormalizeAddress(wallet)
	if err != nil {
		return nil, false, err
	}

	var code string
	if referralCode != "" {
		if code, err = validation.NormalizeReferralCode(referralCode); err != nil {
			return nil, false, err
		}
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		identity, edges, err := s.insert(ctx, wallet, code)
		if err == nil {
			s.publishCreated(ctx, identity, edges)
			return identity, true, nil
		}
		if !isConflict(err) {
			return nil, false, storeError("create identity", err)
		}

		existing, lookupErr := s.identities.GetByWallet(ctx, wallet)
		if lookupErr == nil {
			return existing, false, nil
		}
		if !errors.Is(lookupErr, domain.ErrNotFound) {
			return nil, false, storeError("create identity", lookupErr)
		}
		s.logger.Debug("Referral code collision, retrying", zap.Int("attempt", attempt+1))
	}

	return nil, false, fmt.Errorf("create identity: %w: referral code space exhausted", domain.ErrConflict)
}

func (s *ReferralService) insert(ctx context.Context, wallet, inboundCode string) (*domain.Identity, []domain.ReferralEdge, error) {
	ownCode, err := s.newCode()
	if err != nil {
		return nil, nil, fmt.Errorf("generate referral code: %w", err)
	}

	now := s.now()
	identity := domain.Identity{
		ID:            uuid.NewString(),
		WalletAddress: wallet,
		ReferralCode:  ownCode,
		Level:         1,
		CreatedAt:     now,
		LastLoginAt:   &now,
	}

	var edges []domain.ReferralEdge
	err = s.uow.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		var referrer *domain.Identity
		if inboundCode != "" {
			found, err := repos.Identities.GetByReferralCode(ctx, inboundCode)
			if errors.Is(err, domain.ErrNotFound) {
				return invalidInput("unknown referral code")
			}
			if err != nil {
				return fmt.Errorf("resolve referral code: %w", err)
			}
			referrer = found
			if referrer.ID == identity.ID || validation.SameAddress(referrer.WalletAddress, wallet) {
				return invalidInput("self-referral is not allowed")
			}
			referrerID := referrer.ID
			identity.ReferredBy = &referrerID
		}

		if err := repos.Identities.Create(ctx, identity); err != nil {
			return err
		}
		if referrer == nil {
			return nil
		}

		upline, err := repos.Referrals.ListUpline(ctx, referrer.ID)
		if err != nil {
			return fmt.Errorf("list referrer upline: %w", err)
		}

		edges = append(edges, domain.ReferralEdge{ReferrerID: referrer.ID, RefereeID: identity.ID, Level: 1, CreatedAt: now})
		for _, edge := range upline {
			if edge.Level >= domain.MaxReferralDepth {
				continue
			}
			edges = append(edges, domain.ReferralEdge{
				ReferrerID: edge.ReferrerID,
				RefereeID:  identity.ID,
				Level:      edge.Level + 1,
				CreatedAt:  now,
			})
		}

		return repos.Referrals.CreateEdges(ctx, edges)
	})
	if err != nil {
		return nil, nil, err
	}

	return &identity, edges, nil
}

func (s *ReferralService) publishCreated(ctx context.Context, identity *domain.Identity, edges []domain.ReferralEdge) {
	s.logger.Info("Identity created",
		zap.String("identity_id", identity.ID),
		zap.String("wallet", logger.MaskWallet(identity.WalletAddress)),
		zap.Int("upline_levels", len(edges)),
	)

	if s.events == nil {
		return
	}
	event := domain.IdentityCreatedEvent{
		EventID:       uuid.NewString(),
		IdentityID:    identity.ID,
		WalletAddress: identity.WalletAddress,
		ReferralCode:  identity.ReferralCode,
		ReferrerID:    identity.ReferredBy,
		CreatedAt:     identity.CreatedAt,
	}
	publishEvent(s.logger, "identity.created", func() error {
		return s.events.PublishIdentityCreated(ctx, event)
	})
}

// GetStats counts the downline per level and sums the referral bonuses earned.
func (s *ReferralService) GetStats(ctx context.Context, identityID string) (*domain.ReferralStats, error) {
	if _, err := s.identities.GetByID(ctx, identityID); err != nil {
		return nil, storeError("referral stats", err)
	}

	counts, err := s.referrals.CountDownline(ctx, identityID)
	if err != nil {
		return nil, storeError("referral stats", err)
	}
	earned, err := s.ledger.SumByKind(ctx, identityID, domain.LedgerKindReferralBonus)
	if err != nil {
		return nil, storeError("referral stats", err)
	}

	return &domain.ReferralStats{
		Level1Count: counts[1],
		Level2Count: counts[2],
		Level3Count: counts[3],
		TotalEarned: earned,
	}, nil
}
