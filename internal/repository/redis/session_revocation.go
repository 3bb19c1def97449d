package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/kether-core/internal/core/port"
)

const defaultSessionRevocationPrefix = "sess:revoked"

// SessionRevocationStore persists signed-out session token ids in Redis.
type SessionRevocationStore struct {
	client *red.Client
	prefix string
}

// NewSessionRevocationStore constructs a Redis-backed session revocation store.
func NewSessionRevocationStore(client *red.Client, keyPrefix string) *SessionRevocationStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionRevocationPrefix
	}

	return &SessionRevocationStore{client: client, prefix: prefix}
}

// Revoke stores the token id until ttl, which should match the token's remaining lifetime.
func (s *SessionRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	key := s.key(tokenID)
	if key == "" {
		return fmt.Errorf("token id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	if err := s.client.Set(ctx, key, "signed_out", ttl).Err(); err != nil {
		return fmt.Errorf("redis set session revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id was signed out.
func (s *SessionRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	key := s.key(tokenID)
	if key == "" {
		return false, fmt.Errorf("token id is required")
	}

	if err := s.client.Get(ctx, key).Err(); err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get session revocation: %w", err)
	}
	return true, nil
}

func (s *SessionRevocationStore) key(tokenID string) string {
	trimmed := strings.TrimSpace(tokenID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, trimmed)
}

var _ port.SessionRevocationStore = (*SessionRevocationStore)(nil)
