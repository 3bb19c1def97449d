package port

import (
	"context"
	"time"

	"github.com/arklim/kether-core/internal/core/domain"
)

// ChallengeStore keeps outstanding login challenges.
type ChallengeStore interface {
	Save(ctx context.Context, challenge domain.AuthChallenge, ttl time.Duration) error
	// Consume atomically removes and returns the challenge; only one caller wins.
	Consume(ctx context.Context, nonce string) (*domain.AuthChallenge, error)
}

// RateLimitStore implements fixed-window counters.
type RateLimitStore interface {
	// Increment counts one hit in the window for key and returns the count and the window's remaining lifetime.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// SuspiciousActivityStore tracks unauthorized attempts and flagged addresses.
type SuspiciousActivityStore interface {
	RecordAttempt(ctx context.Context, ip string, window time.Duration) (int64, error)
	Flag(ctx context.Context, ip string, reason string, ttl time.Duration) error
	IsFlagged(ctx context.Context, ip string) (bool, error)
}

// SessionRevocationStore records signed-out session token ids.
type SessionRevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ClaimLockStore guards once-per-period reward claims.
type ClaimLockStore interface {
	// Acquire takes the lock for ttl. When already held it returns false and the remaining lifetime.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
	Release(ctx context.Context, key string) error
}
