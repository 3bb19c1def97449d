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
	"github.com/arklim/kether-core/internal/infra/logger"
	"github.com/arklim/kether-core/internal/infra/security"
	"github.com/arklim/kether-core/internal/infra/telemetry"
)

// Challenge is what a wallet is asked to sign.
type Challenge struct {
	Nonce     string
	Message   string
	ExpiresAt time.Time
}

// CompleteOptions carries optional sign-in context.
type CompleteOptions struct {
	ReferralCode string
	Device       *domain.DeviceInfo
	Email        string
	IPAddress    string
}

// AuthResult is a successful sign-in.
type AuthResult struct {
	Identity domain.Identity
	Created  bool
	Token    string
	Session  domain.Session
	Risk     domain.RiskAssessment
}

// AuthService runs the wallet challenge/response sign-in.
type AuthService struct {
	challenges   port.ChallengeStore
	identities   port.IdentityRepository
	referrals    *ReferralService
	sessions     *SessionManager
	risk         *RiskEngine
	metrics      *telemetry.Metrics
	logger       *zap.Logger
	appName      string
	replayWindow time.Duration
	now          func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	cfg config.AuthSettings,
	challenges port.ChallengeStore,
	identities port.IdentityRepository,
	referrals *ReferralService,
	sessions *SessionManager,
	risk *RiskEngine,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	appName := strings.TrimSpace(cfg.AppName)
	if appName == "" {
		appName = "Kether"
	}
	window := cfg.ReplayWindow
	if window <= 0 {
		window = domain.DefaultReplayWindow
	}
	return &AuthService{
		challenges:   challenges,
		identities:   identities,
		referrals:    referrals,
		sessions:     sessions,
		risk:         risk,
		metrics:      metrics,
		logger:       logger,
		appName:      appName,
		replayWindow: window,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// BeginChallenge issues a single-use nonce for wallet. The message carries no timestamp.
func (s *AuthService) BeginChallenge(ctx context.Context, wallet string) (*Challenge, error) {
	wallet, err := validation.NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}

	nonce, err := security.GenerateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	now := s.now()
	challenge := domain.AuthChallenge{
		Nonce:         nonce,
		WalletAddress: wallet,
		Message:       security.BuildChallengeMessage(s.appName, wallet, nonce),
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.replayWindow),
	}

	if err := s.challenges.Save(ctx, challenge, s.replayWindow); err != nil {
		return nil, fmt.Errorf("save challenge: %w: %w", domain.ErrStoreUnavailable, err)
	}

	return &Challenge{Nonce: nonce, Message: challenge.Message, ExpiresAt: challenge.ExpiresAt}, nil
}

// CompleteChallenge verifies the signed challenge, consumes its nonce and signs the identity in,
// creating it on first sign-in.
func (s *AuthService) CompleteChallenge(ctx context.Context, wallet, signature, message string, opts CompleteOptions) (*AuthResult, error) {
	result, err := s.completeChallenge(ctx, wallet, signature, message, opts)
	if err != nil {
		s.metrics.AuthAttempt(domain.ErrorCode(err))
		s.logger.Info("Wallet sign-in rejected",
			zap.String("wallet", logger.MaskWallet(wallet)),
			zap.String("reason", domain.ErrorCode(err)),
		)
		return nil, err
	}
	s.metrics.AuthAttempt("success")
	return result, nil
}

func (s *AuthService) completeChallenge(ctx context.Context, wallet, signature, message string, opts CompleteOptions) (*AuthResult, error) {
	wallet, err := validation.NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}

	fields, err := security.ParseChallengeMessage(message)
	if err != nil {
		return nil, invalidInput("malformed challenge message")
	}
	if !validation.SameAddress(fields.Wallet, wallet) {
		return nil, fmt.Errorf("message wallet: %w", domain.ErrSignatureMismatch)
	}

	recovered, err := security.RecoverAddress(message, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureMismatch, err)
	}
	if !validation.SameAddress(recovered, wallet) {
		return nil, domain.ErrSignatureMismatch
	}

	now := s.now()
	if fields.HasTimestamp {
		age := now.Sub(fields.Timestamp)
		if age > s.replayWindow || age < -s.replayWindow {
			return nil, fmt.Errorf("signed timestamp outside replay window: %w", domain.ErrChallengeExpired)
		}
	}

	challenge, err := s.challenges.Consume(ctx, fields.Nonce)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrChallengeExpired
	}
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if challenge.Expired(now) {
		return nil, domain.ErrChallengeExpired
	}
	if !validation.SameAddress(challenge.WalletAddress, wallet) || !strings.HasPrefix(message, challenge.Message) {
		return nil, fmt.Errorf("challenge does not match: %w", domain.ErrSignatureMismatch)
	}

	identity, created, err := s.loadOrCreate(ctx, wallet, opts.ReferralCode, now)
	if err != nil {
		return nil, err
	}

	var assessment domain.RiskAssessment
	if s.risk != nil {
		assessment = s.risk.Assess(ctx, RiskInput{
			IdentityID: identity.ID,
			Action:     string(domain.ActionAuth),
			Device:     opts.Device,
			Email:      opts.Email,
			IPAddress:  opts.IPAddress,
		})
	}

	token, session, err := s.sessions.Issue(*identity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Wallet signed in",
		zap.String("identity_id", identity.ID),
		zap.String("wallet", logger.MaskWallet(wallet)),
		zap.Bool("created", created),
		zap.Int("trust_score", assessment.TrustScore),
	)

	return &AuthResult{
		Identity: *identity,
		Created:  created,
		Token:    token,
		Session:  session,
		Risk:     assessment,
	}, nil
}

func (s *AuthService) loadOrCreate(ctx context.Context, wallet, referralCode string, now time.Time) (*domain.Identity, bool, error) {
	identity, err := s.identities.GetByWallet(ctx, wallet)
	if err == nil {
		if err := s.identities.TouchLogin(ctx, identity.ID, now); err != nil {
			s.logger.Warn("Failed to record login time", zap.String("identity_id", identity.ID), zap.Error(err))
		} else {
			identity.LastLoginAt = &now
		}
		return identity, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, storeError("load identity", err)
	}

	return s.referrals.CreateIdentity(ctx, wallet, referralCode)
}
