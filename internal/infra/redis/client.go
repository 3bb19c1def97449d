package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/infra/config"
)

const startupPingTimeout = 5 * time.Second

// Client owns the shared go-redis pool. Challenge, revocation, rate window,
// suspicious activity and claim lock stores all run on it under their own prefix.
type Client struct {
	rdb    *redis.Client
	log    *zap.Logger
	prefix string
}

// options sizes the pool for the hot path: every rate limited request
// issues at least one INCR, and auth adds a challenge GETDEL.
func options(cfg config.RedisSettings) *redis.Options {
	opts := &redis.Options{
		Addr:            net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        20,
		MinIdleConns:    4,
		MaxRetries:      3,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host}
	}
	return opts
}

// NewClient dials Redis and fails fast when the first PING does not answer.
func NewClient(cfg config.RedisSettings, log *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info("connected to redis",
		zap.String("addr", rdb.Options().Addr),
		zap.Int("db", cfg.DB),
		zap.Bool("tls", cfg.TLSEnabled),
		zap.String("key_prefix", cfg.KeyPrefix),
	)

	return &Client{rdb: rdb, log: log, prefix: cfg.KeyPrefix}, nil
}

// KeyPrefix scopes a store's keys under the deployment prefix, e.g.
// "kether:rate" for the rate window store.
func (c *Client) KeyPrefix(store string) string {
	if c.prefix == "" {
		return store
	}
	return c.prefix + ":" + store
}

// Client exposes the pool to the repository layer.
func (c *Client) Client() *redis.Client {
	return c.rdb
}

// HealthCheck backs the /readyz redis probe.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.log.Info("closing redis pool")
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
