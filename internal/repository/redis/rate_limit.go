package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/kether-core/internal/core/port"
)

const defaultRateLimitPrefix = "rl"

// RateLimitRepository persists fixed-window counters in Redis.
type RateLimitRepository struct {
	client *red.Client
	prefix string
}

// NewRateLimitRepository constructs a repository using the provided Redis client and key prefix.
func NewRateLimitRepository(client *red.Client, keyPrefix string) *RateLimitRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}
	return &RateLimitRepository{client: client, prefix: prefix}
}

// Increment counts one hit for key in the current window.
func (r *RateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if strings.TrimSpace(key) == "" {
		return 0, 0, fmt.Errorf("rate limit key is required")
	}
	return incrementWindow(ctx, r.client, prefixedKey(r.prefix, key), window)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
