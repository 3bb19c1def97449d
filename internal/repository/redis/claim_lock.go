package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/kether-core/internal/core/port"
)

const defaultClaimLockPrefix = "claim"

// ClaimLockRepository implements once-per-period claim locks with SET NX.
type ClaimLockRepository struct {
	client *red.Client
	prefix string
}

// NewClaimLockRepository constructs the repository.
func NewClaimLockRepository(client *red.Client, keyPrefix string) *ClaimLockRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultClaimLockPrefix
	}
	return &ClaimLockRepository{client: client, prefix: prefix}
}

// Acquire takes the lock; when held it returns false with the remaining lifetime.
func (r *ClaimLockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	if strings.TrimSpace(key) == "" {
		return false, 0, fmt.Errorf("claim key is required")
	}
	if ttl <= 0 {
		return false, 0, fmt.Errorf("ttl must be positive")
	}

	full := prefixedKey(r.prefix, key)
	ok, err := r.client.SetNX(ctx, full, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis setnx claim lock: %w", err)
	}
	if ok {
		return true, ttl, nil
	}

	remaining, err := r.client.PTTL(ctx, full).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis pttl claim lock: %w", err)
	}
	if remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil
}

// Release drops the lock so the claim can be retried.
func (r *ClaimLockRepository) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, prefixedKey(r.prefix, key)).Err(); err != nil {
		return fmt.Errorf("redis delete claim lock: %w", err)
	}
	return nil
}

var _ port.ClaimLockStore = (*ClaimLockRepository)(nil)
