package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitRepository_FixedWindow(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, "rl:test")

	for i := 1; i <= 3; i++ {
		count, ttl, err := repo.Increment(context.Background(), "auth:203.0.113.7", time.Minute)
		if err != nil {
			t.Fatalf("Increment returned error: %v", err)
		}
		if count != int64(i) {
			t.Fatalf("expected count %d, got %d", i, count)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Fatalf("unexpected ttl %v", ttl)
		}
	}

	server.FastForward(time.Minute + time.Second)

	count, _, err := repo.Increment(context.Background(), "auth:203.0.113.7", time.Minute)
	if err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected counter reset after window, got %d", count)
	}
}

func TestRateLimitRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "")

	if _, _, err := repo.Increment(context.Background(), "", time.Minute); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, _, err := repo.Increment(context.Background(), "k", 0); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestRateLimitRepository_StoreDown(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, "")
	server.Close()

	if _, _, err := repo.Increment(context.Background(), "k", time.Minute); err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}
