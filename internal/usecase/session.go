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
	"github.com/arklim/kether-core/internal/infra/security"
	"github.com/arklim/kether-core/internal/infra/telemetry"
)

// SessionTokens issues and verifies signed session tokens.
type SessionTokens interface {
	IssueSession(identityID, wallet string) (string, *security.SessionClaims, error)
	ParseSession(token string) (*security.SessionClaims, error)
}

// SessionManager turns bearer tokens into request-scoped sessions.
type SessionManager struct {
	tokens      SessionTokens
	revocations port.SessionRevocationStore
	policy      domain.FailurePolicy
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewSessionManager constructs a SessionManager. revocations may be nil.
func NewSessionManager(tokens SessionTokens, revocations port.SessionRevocationStore, policy domain.FailurePolicy, metrics *telemetry.Metrics, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		tokens:      tokens,
		revocations: revocations,
		policy:      policy,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (m *SessionManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// Issue signs a session token for identity.
func (m *SessionManager) Issue(identity domain.Identity) (string, domain.Session, error) {
	token, claims, err := m.tokens.IssueSession(identity.ID, identity.WalletAddress)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("issue session: %w", err)
	}
	return token, sessionFromClaims(claims), nil
}

// Restore validates token and returns its session. Any failure yields (nil, false).
func (m *SessionManager) Restore(ctx context.Context, token string) (*domain.Session, bool) {
	claims, err := m.tokens.ParseSession(strings.TrimSpace(token))
	if err != nil {
		return nil, false
	}

	session := sessionFromClaims(claims)
	if !session.IsActive(m.now()) {
		return nil, false
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(ctx, session.TokenID)
		switch {
		case err != nil && m.policy.FailOpen(domain.OperationSessionRevocation):
			m.metrics.Degraded(string(domain.OperationSessionRevocation), string(domain.FailOpen))
			m.logger.Warn("Session revocation store unavailable, accepting token", zap.Error(err))
		case err != nil:
			m.metrics.Degraded(string(domain.OperationSessionRevocation), string(domain.FailClosed))
			return nil, false
		case revoked:
			return nil, false
		}
	}

	return &session, true
}

// Clear signs the token out. Restore rejects it from then on until it would have expired.
// Invalid or expired tokens are already unusable and clear silently.
func (m *SessionManager) Clear(ctx context.Context, token string) error {
	claims, err := m.tokens.ParseSession(strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, security.ErrExpiredSessionToken) || errors.Is(err, security.ErrInvalidSessionToken) {
			return nil
		}
		return fmt.Errorf("clear session: %w", err)
	}
	if m.revocations == nil {
		return nil
	}

	session := sessionFromClaims(claims)
	ttl := session.Remaining(m.now())
	if ttl <= 0 {
		return nil
	}

	if err := m.revocations.Revoke(ctx, session.TokenID, ttl); err != nil {
		return fmt.Errorf("clear session: %w: %w", domain.ErrStoreUnavailable, err)
	}

	m.logger.Info("Session cleared", zap.String("identity_id", session.IdentityID))
	return nil
}

func sessionFromClaims(claims *security.SessionClaims) domain.Session {
	session := domain.Session{
		TokenID:       claims.ID,
		IdentityID:    claims.IdentityID,
		WalletAddress: claims.WalletAddress,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return session
}
