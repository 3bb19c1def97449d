package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/core/validation"
	"github.com/arklim/kether-core/internal/infra/config"
	"github.com/arklim/kether-core/internal/infra/logger"
	"github.com/arklim/kether-core/internal/infra/telemetry"
)

// DefaultRateLimitPolicies returns the built-in budget per action class.
func DefaultRateLimitPolicies() map[domain.ActionClass]domain.RateLimitPolicy {
	return map[domain.ActionClass]domain.RateLimitPolicy{
		domain.ActionGeneral:            {Limit: 100, Window: time.Minute},
		domain.ActionAuth:               {Limit: 20, Window: time.Minute},
		domain.ActionSocialVerification: {Limit: 5, Window: time.Hour},
		domain.ActionReward:             {Limit: 30, Window: time.Minute},
		domain.ActionAdmin:              {Limit: 10, Window: time.Minute},
	}
}

// RateLimitPoliciesFromConfig overlays configured classes onto the defaults.
func RateLimitPoliciesFromConfig(cfg config.RateLimitSettings) map[domain.ActionClass]domain.RateLimitPolicy {
	policies := DefaultRateLimitPolicies()
	overlay := map[domain.ActionClass]config.RateLimitClass{
		domain.ActionGeneral:            cfg.General,
		domain.ActionAuth:               cfg.Auth,
		domain.ActionSocialVerification: cfg.SocialVerification,
		domain.ActionReward:             cfg.Reward,
		domain.ActionAdmin:              cfg.Admin,
	}
	for class, c := range overlay {
		if c.Limit > 0 && c.Window > 0 {
			policies[class] = domain.RateLimitPolicy{Limit: c.Limit, Window: c.Window}
		}
	}
	return policies
}

// RateLimiter enforces fixed windows per (key, action class).
type RateLimiter struct {
	store    port.RateLimitStore
	policies map[domain.ActionClass]domain.RateLimitPolicy
	policy   domain.FailurePolicy
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

// NewRateLimiter constructs a RateLimiter. Nil policies use the defaults.
func NewRateLimiter(store port.RateLimitStore, policies map[domain.ActionClass]domain.RateLimitPolicy, policy domain.FailurePolicy, metrics *telemetry.Metrics, log *zap.Logger) *RateLimiter {
	if policies == nil {
		policies = DefaultRateLimitPolicies()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		store:    store,
		policies: policies,
		policy:   policy,
		metrics:  metrics,
		logger:   log,
	}
}

// Policy returns the budget for class, falling back to the general class.
func (l *RateLimiter) Policy(class domain.ActionClass) domain.RateLimitPolicy {
	if p, ok := l.policies[class]; ok {
		return p
	}
	return l.policies[domain.ActionGeneral]
}

// Check counts one request for key in class and reports whether it is within budget.
func (l *RateLimiter) Check(ctx context.Context, key string, class domain.ActionClass) (domain.RateLimitDecision, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.RateLimitDecision{}, invalidInput("rate limit key is required")
	}
	if _, ok := l.policies[class]; !ok {
		class = domain.ActionGeneral
	}
	p := l.Policy(class)

	count, ttl, err := l.store.Increment(ctx, string(class)+":"+key, p.Window)
	if err != nil {
		if l.policy.FailOpen(domain.OperationRateLimit) {
			l.metrics.Degraded(string(domain.OperationRateLimit), string(domain.FailOpen))
			l.logger.Warn("Rate limit store unavailable, allowing request",
				zap.String("class", string(class)),
				zap.Error(err),
			)
			return domain.RateLimitDecision{Allowed: true, Limit: p.Limit, Remaining: p.Limit, ResetIn: p.Window}, nil
		}
		l.metrics.Degraded(string(domain.OperationRateLimit), string(domain.FailClosed))
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit: %w: %w", domain.ErrStoreUnavailable, err)
	}

	remaining := p.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	decision := domain.RateLimitDecision{
		Allowed:   count <= int64(p.Limit),
		Limit:     p.Limit,
		Remaining: remaining,
		ResetIn:   ttl,
	}

	l.metrics.RateLimitDecision(string(class), decision.Allowed)
	return decision, nil
}

// AdminGuard gates admin routes and watches for repeated unauthorized attempts.
type AdminGuard struct {
	suspicious port.SuspiciousActivityStore
	events     port.EventPublisher
	admins     map[string]struct{}
	threshold  int64
	window     time.Duration
	flagTTL    time.Duration
	policy     domain.FailurePolicy
	metrics    *telemetry.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewAdminGuard constructs an AdminGuard from the admin settings.
func NewAdminGuard(suspicious port.SuspiciousActivityStore, events port.EventPublisher, cfg config.AdminSettings, policy domain.FailurePolicy, metrics *telemetry.Metrics, log *zap.Logger) *AdminGuard {
	if log == nil {
		log = zap.NewNop()
	}
	admins := make(map[string]struct{}, len(cfg.Wallets))
	for _, wallet := range cfg.Wallets {
		if normalized, err := validation.NormalizeAddress(wallet); err == nil {
			admins[normalized] = struct{}{}
		} else {
			log.Warn("Ignoring malformed admin wallet", zap.String("wallet", logger.MaskWallet(wallet)))
		}
	}

	g := &AdminGuard{
		suspicious: suspicious,
		events:     events,
		admins:     admins,
		threshold:  cfg.SuspiciousThreshold,
		window:     cfg.SuspiciousWindow,
		flagTTL:    cfg.FlagTTL,
		policy:     policy,
		metrics:    metrics,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if g.threshold <= 0 {
		g.threshold = 5
	}
	if g.window <= 0 {
		g.window = time.Hour
	}
	if g.flagTTL <= 0 {
		g.flagTTL = 24 * time.Hour
	}
	return g
}

// IsAdmin reports whether wallet is on the admin allow-list.
func (g *AdminGuard) IsAdmin(wallet string) bool {
	normalized, err := validation.NormalizeAddress(wallet)
	if err != nil {
		return false
	}
	_, ok := g.admins[normalized]
	return ok
}

// RecordUnauthorizedAdmin counts a rejected admin attempt from ip. Once the count passes the
// threshold inside the window the IP is flagged. Flagged IPs are reported, not blocked.
func (g *AdminGuard) RecordUnauthorizedAdmin(ctx context.Context, ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" || g.suspicious == nil {
		return false
	}

	attempts, err := g.suspicious.RecordAttempt(ctx, ip, g.window)
	if err != nil {
		g.storeDegraded(err)
		return false
	}
	if attempts <= g.threshold {
		return false
	}

	already, err := g.suspicious.IsFlagged(ctx, ip)
	if err != nil {
		g.storeDegraded(err)
		return false
	}
	if already {
		return true
	}

	const reason = "repeated unauthorized admin access"
	if err := g.suspicious.Flag(ctx, ip, reason, g.flagTTL); err != nil {
		g.storeDegraded(err)
		return false
	}

	g.metrics.SuspiciousIPFlagged()
	g.logger.Warn("IP flagged as suspicious",
		zap.String("ip", logger.MaskIP(ip)),
		zap.Int64("attempts", attempts),
		zap.Duration("flag_ttl", g.flagTTL),
	)

	if g.events != nil {
		event := domain.SuspiciousActivityEvent{
			EventID:    uuid.NewString(),
			IPAddress:  ip,
			Reason:     reason,
			Attempts:   attempts,
			DetectedAt: g.now(),
		}
		publishEvent(g.logger, "security.suspicious_ip", func() error {
			return g.events.PublishSuspiciousActivity(ctx, event)
		})
	}

	return true
}

// IsFlagged reports whether ip is currently flagged. Store errors report false.
func (g *AdminGuard) IsFlagged(ctx context.Context, ip string) bool {
	if g.suspicious == nil {
		return false
	}
	flagged, err := g.suspicious.IsFlagged(ctx, ip)
	if err != nil {
		g.storeDegraded(err)
		return false
	}
	return flagged
}

func (g *AdminGuard) storeDegraded(err error) {
	mode := g.policy.Mode(domain.OperationSuspiciousActivity)
	g.metrics.Degraded(string(domain.OperationSuspiciousActivity), string(mode))
	g.logger.Warn("Suspicious activity store unavailable", zap.Error(err))
}
