package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/core/validation"
	"github.com/arklim/kether-core/internal/infra/config"
)

// SocialService verifies social account ownership and rewards the first link.
type SocialService struct {
	verifier port.OwnershipVerifier
	links    port.SocialLinkRepository
	risk     *RiskEngine
	ledger   *LedgerService
	minTrust int
	reward   int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewSocialService constructs a SocialService.
func NewSocialService(verifier port.OwnershipVerifier, links port.SocialLinkRepository, risk *RiskEngine, ledger *LedgerService, cfg config.SocialSettings, logger *zap.Logger) *SocialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SocialService{
		verifier: verifier,
		links:    links,
		risk:     risk,
		ledger:   ledger,
		minTrust: cfg.MinTrustScore,
		reward:   cfg.RewardAmount,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.minTrust <= 0 {
		s.minTrust = 40
	}
	return s
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SocialService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Verify checks ownership of claim for identityID. The link is accepted only when the platform
// confirms ownership and the trust score reaches the threshold. An account links to one identity.
// The link and its reward commit in one transaction, so a failed credit leaves the account unlinked.
func (s *SocialService) Verify(ctx context.Context, identityID string, claim domain.SocialClaim, riskInput RiskInput) (*domain.VerificationResult, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, invalidInput("identity id is required")
	}
	platform, ok := domain.ParseSocialPlatform(string(claim.Platform))
	if !ok {
		return nil, invalidInput("unsupported platform %q", claim.Platform)
	}
	claim.Platform = platform

	username, err := validation.ValidateString("username", claim.CanonicalUsername(), 1, 64)
	if err != nil {
		return nil, err
	}
	claim.Username = username
	if _, err := validation.ValidateString("proof_token", claim.ProofToken, 1, 512); err != nil {
		return nil, err
	}

	result := &domain.VerificationResult{
		Platform:   platform,
		Username:   username,
		VerifiedAt: s.now(),
	}

	existing, err := s.links.GetByAccount(ctx, platform, username)
	switch {
	case err == nil && existing.IdentityID == identityID:
		result.Verified = true
		result.Accepted = true
		result.Reason = "already linked"
		return result, nil
	case err == nil:
		return nil, fmt.Errorf("%s account already linked: %w", platform, domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, storeError("lookup social link", err)
	}

	verified, err := s.verifier.Verify(ctx, claim)
	if err != nil {
		return nil, fmt.Errorf("ownership verification: %w: %w", domain.ErrStoreUnavailable, err)
	}
	result.Verified = verified
	if !verified {
		result.Reason = "ownership not confirmed"
		return result, nil
	}

	riskInput.IdentityID = identityID
	riskInput.Action = string(domain.ActionSocialVerification)
	assessment := s.risk.Assess(ctx, riskInput)
	result.TrustScore = assessment.TrustScore
	if assessment.TrustScore < s.minTrust {
		result.Reason = "trust score below threshold"
		s.logger.Info("Social verification held back by trust score",
			zap.String("identity_id", identityID),
			zap.String("platform", string(platform)),
			zap.Int("trust_score", assessment.TrustScore),
		)
		return result, nil
	}

	link := domain.SocialLink{
		IdentityID: identityID,
		Platform:   platform,
		Username:   username,
		LinkedAt:   result.VerifiedAt,
	}
	if s.reward <= 0 {
		if err := s.links.Link(ctx, link); err != nil {
			return nil, storeError("link social account", err)
		}
		result.Accepted = true
		return result, nil
	}

	reference := string(domain.RewardSocial) + ":" + string(platform)
	_, err = s.ledger.CreditWithin(ctx, identityID, s.reward, domain.LedgerKindReward, reference,
		func(ctx context.Context, repos port.Repositories) error {
			return repos.SocialLinks.Link(ctx, link)
		})
	if err != nil {
		s.logger.Warn("Social link and reward rolled back",
			zap.String("identity_id", identityID),
			zap.String("platform", string(platform)),
			zap.Error(err),
		)
		return nil, err
	}
	result.Accepted = true
	result.Reward = s.reward

	return result, nil
}

// ListLinks returns the identity's linked social accounts.
func (s *SocialService) ListLinks(ctx context.Context, identityID string) ([]domain.SocialLink, error) {
	links, err := s.links.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, storeError("list social links", err)
	}
	return links, nil
}
