package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/kether-core/internal/core/port"
)

const defaultSuspiciousPrefix = "sec"

// SuspiciousActivityRepository counts unauthorized attempts and keeps suspicious flags per IP.
type SuspiciousActivityRepository struct {
	client *red.Client
	prefix string
}

// NewSuspiciousActivityRepository constructs the repository.
func NewSuspiciousActivityRepository(client *red.Client, keyPrefix string) *SuspiciousActivityRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSuspiciousPrefix
	}
	return &SuspiciousActivityRepository{client: client, prefix: prefix}
}

// RecordAttempt counts one unauthorized attempt from ip within window.
func (r *SuspiciousActivityRepository) RecordAttempt(ctx context.Context, ip string, window time.Duration) (int64, error) {
	if strings.TrimSpace(ip) == "" {
		return 0, fmt.Errorf("ip is required")
	}
	count, _, err := incrementWindow(ctx, r.client, prefixedKey(r.prefix, "attempts", ip), window)
	return count, err
}

// Flag marks ip as suspicious for ttl.
func (r *SuspiciousActivityRepository) Flag(ctx context.Context, ip string, reason string, ttl time.Duration) error {
	if strings.TrimSpace(ip) == "" {
		return fmt.Errorf("ip is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	value := strings.TrimSpace(reason)
	if value == "" {
		value = "suspicious"
	}
	if err := r.client.Set(ctx, prefixedKey(r.prefix, "flag", ip), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set suspicious flag: %w", err)
	}
	return nil
}

// IsFlagged reports whether ip currently carries a suspicious flag.
func (r *SuspiciousActivityRepository) IsFlagged(ctx context.Context, ip string) (bool, error) {
	n, err := r.client.Exists(ctx, prefixedKey(r.prefix, "flag", ip)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists suspicious flag: %w", err)
	}
	return n > 0, nil
}

var _ port.SuspiciousActivityStore = (*SuspiciousActivityRepository)(nil)
