package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/repository"
)

const (
	defaultChallengePrefix = "auth:challenge"

	fieldWallet    = "wallet"
	fieldMessage   = "message"
	fieldIssuedAt  = "issued_at"
	fieldExpiresAt = "expires_at"
)

// ChallengeRepository stores login challenges as Redis hashes keyed by nonce.
type ChallengeRepository struct {
	client *red.Client
	prefix string
}

// NewChallengeRepository constructs a challenge repository with the provided Redis client and key prefix.
func NewChallengeRepository(client *red.Client, keyPrefix string) *ChallengeRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	return &ChallengeRepository{client: client, prefix: prefix}
}

// Save stores the challenge with ttl.
func (r *ChallengeRepository) Save(ctx context.Context, challenge domain.AuthChallenge, ttl time.Duration) error {
	if strings.TrimSpace(challenge.Nonce) == "" {
		return fmt.Errorf("nonce is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	key := prefixedKey(r.prefix, challenge.Nonce)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldWallet:    challenge.WalletAddress,
		fieldMessage:   challenge.Message,
		fieldIssuedAt:  challenge.IssuedAt.UTC().UnixMilli(),
		fieldExpiresAt: challenge.ExpiresAt.UTC().UnixMilli(),
	})
	pipe.PExpire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save challenge: %w", err)
	}
	return nil
}

// Consume reads and deletes the challenge in one MULTI block so only one caller receives it.
func (r *ChallengeRepository) Consume(ctx context.Context, nonce string) (*domain.AuthChallenge, error) {
	if strings.TrimSpace(nonce) == "" {
		return nil, repository.ErrNotFound
	}

	key := prefixedKey(r.prefix, nonce)
	pipe := r.client.TxPipeline()
	get := pipe.HGetAll(ctx, key)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis consume challenge: %w", err)
	}

	values := get.Val()
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	issuedAt, err := parseMillis(values[fieldIssuedAt])
	if err != nil {
		return nil, fmt.Errorf("parse challenge issued_at: %w", err)
	}
	expiresAt, err := parseMillis(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse challenge expires_at: %w", err)
	}

	return &domain.AuthChallenge{
		Nonce:         strings.TrimSpace(nonce),
		WalletAddress: values[fieldWallet],
		Message:       values[fieldMessage],
		IssuedAt:      issuedAt,
		ExpiresAt:     expiresAt,
	}, nil
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

var _ port.ChallengeStore = (*ChallengeRepository)(nil)
