package usecase

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/core/validation"
	"github.com/arklim/kether-core/internal/infra/logger"
	"github.com/arklim/kether-core/internal/infra/telemetry"
)

// DeviceBaseline is the neutral device score used when no device payload is sent.
const DeviceBaseline = 50

var (
	disposableDomains = []string{
		"mailinator.com", "guerrillamail.com", "10minutemail.com", "tempmail.com",
		"temp-mail.org", "yopmail.com", "throwawaymail.com", "trashmail.com",
		"sharklasers.com", "getnada.com", "dispostable.com", "maildrop.cc",
		"fakeinbox.com", "mintemail.com", "mohmal.com",
	}
	consumerDomains = []string{
		"gmail.com", "yahoo.com", "outlook.com", "hotmail.com", "icloud.com",
		"protonmail.com", "proton.me", "aol.com", "gmx.com", "mail.ru", "yandex.ru",
	}
	knownPlatforms = []string{"win", "mac", "linux", "iphone", "ipad", "android", "cros"}

	consecutiveDigits = regexp.MustCompile(`\d{5,}`)
	lettersThenDigits = regexp.MustCompile(`^[a-z]+\d+$`)
)

// RiskInput carries the context of one action being scored.
type RiskInput struct {
	IdentityID string
	Action     string
	Device     *domain.DeviceInfo
	Email      string
	IPAddress  string
}

// RiskEngine scores devices, emails and recent behaviour. Scores are advisory.
type RiskEngine struct {
	signals    port.RiskSignalRepository
	suspicious port.SuspiciousActivityStore
	policy     domain.FailurePolicy
	metrics    *telemetry.Metrics
	logger     *zap.Logger
	lookback   time.Duration
	now        func() time.Time
}

// NewRiskEngine constructs a RiskEngine. signals and suspicious may be nil.
func NewRiskEngine(signals port.RiskSignalRepository, suspicious port.SuspiciousActivityStore, policy domain.FailurePolicy, metrics *telemetry.Metrics, log *zap.Logger) *RiskEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &RiskEngine{
		signals:    signals,
		suspicious: suspicious,
		policy:     policy,
		metrics:    metrics,
		logger:     log,
		lookback:   24 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (e *RiskEngine) WithClock(clock func() time.Time) {
	if clock != nil {
		e.now = clock
	}
}

// DeviceScore rates how much a device payload looks like a real browser.
func (e *RiskEngine) DeviceScore(info domain.DeviceInfo) int {
	score := DeviceBaseline

	if info.HardwareConcurrency > 0 {
		score += 10
	}
	if info.DeviceMemory > 0 {
		score += 10
	}
	if info.WebGL {
		score += 10
	} else {
		score -= 15
	}
	if info.CookiesEnabled {
		score += 10
	}
	if info.HardwareConcurrency > 16 {
		score -= 10
	}
	if len(info.Languages) == 0 {
		score -= 15
	}
	if !knownPlatform(info.Platform) {
		score -= 15
	}
	if info.Automation {
		score -= 30
	}

	return domain.ClampScore(score)
}

func knownPlatform(platform string) bool {
	p := strings.ToLower(strings.TrimSpace(platform))
	if p == "" {
		return false
	}
	for _, prefix := range knownPlatforms {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// EmailScore rates an email address. Unparseable input scores 0.
func (e *RiskEngine) EmailScore(email string) int {
	email, err := validation.ValidateEmail(email)
	if err != nil {
		return 0
	}
	at := strings.LastIndex(email, "@")
	local, domainPart := email[:at], email[at+1:]

	score := 100

	disposable := matchesDomain(domainPart, disposableDomains)
	consumer := matchesDomain(domainPart, consumerDomains)

	if disposable {
		score -= 60
	}
	if consecutiveDigits.MatchString(local) {
		score -= 20
	}
	if lettersThenDigits.MatchString(local) {
		score -= 15
	}
	if len(local) < 3 {
		score -= 10
	}
	if longestRun(local) >= 4 {
		score -= 15
	}
	if consumer {
		score += 10
	}
	if !disposable && !consumer {
		score += 15
	}

	return domain.ClampScore(score)
}

// matchesDomain checks substring containment in either direction.
func matchesDomain(domainPart string, list []string) bool {
	for _, candidate := range list {
		if strings.Contains(domainPart, candidate) || strings.Contains(candidate, domainPart) {
			return true
		}
	}
	return false
}

func longestRun(s string) int {
	best, run := 0, 0
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
		prev = r
	}
	return best
}

// BehaviorScore penalises shared fingerprints, crowded IPs and flagged IPs seen in the lookback window.
func (e *RiskEngine) BehaviorScore(ctx context.Context, fingerprint, ip string) (int, []string) {
	score := 100
	var reasons []string
	since := e.now().Add(-e.lookback)

	if e.signals != nil && fingerprint != "" {
		n, err := e.signals.CountIdentitiesByFingerprint(ctx, fingerprint, since)
		switch {
		case err != nil:
			e.degraded(domain.OperationRiskSignal, err)
		case n > 1:
			score -= min(15*(n-1), 60)
			reasons = append(reasons, "shared_device")
		}
	}

	if e.signals != nil && ip != "" {
		n, err := e.signals.CountIdentitiesByIP(ctx, ip, since)
		switch {
		case err != nil:
			e.degraded(domain.OperationRiskSignal, err)
		case n > 3:
			score -= min(10*(n-3), 40)
			reasons = append(reasons, "crowded_ip")
		}
	}

	if e.suspicious != nil && ip != "" {
		flagged, err := e.suspicious.IsFlagged(ctx, ip)
		switch {
		case err != nil:
			e.degraded(domain.OperationSuspiciousActivity, err)
		case flagged:
			score -= 40
			reasons = append(reasons, "suspicious_ip")
		}
	}

	return domain.ClampScore(score), reasons
}

// Assess scores an action and appends a risk signal when an identity is known.
func (e *RiskEngine) Assess(ctx context.Context, input RiskInput) domain.RiskAssessment {
	device := DeviceBaseline
	fingerprint := ""
	if input.Device != nil {
		device = e.DeviceScore(*input.Device)
		fingerprint = strings.TrimSpace(input.Device.Fingerprint)
	}

	var emailScore *int
	if strings.TrimSpace(input.Email) != "" {
		s := e.EmailScore(input.Email)
		emailScore = &s
	}

	behavior, reasons := e.BehaviorScore(ctx, fingerprint, input.IPAddress)

	assessment := domain.RiskAssessment{
		DeviceScore:   device,
		EmailScore:    emailScore,
		BehaviorScore: behavior,
		TrustScore:    TrustScore(device, emailScore, behavior),
		Reasons:       reasons,
	}

	if e.signals != nil && input.IdentityID != "" {
		signal := domain.RiskSignal{
			ID:                uuid.NewString(),
			IdentityID:        input.IdentityID,
			Action:            input.Action,
			DeviceFingerprint: fingerprint,
			DeviceScore:       device,
			EmailScore:        emailScore,
			IPAddress:         input.IPAddress,
			ObservedAt:        e.now(),
		}
		if err := e.signals.Record(ctx, signal); err != nil {
			e.degraded(domain.OperationRiskSignal, err)
		}
	}

	e.logger.Debug("Risk assessed",
		zap.String("action", input.Action),
		zap.String("ip", logger.MaskIP(input.IPAddress)),
		zap.String("email", logger.MaskEmail(input.Email)),
		zap.Int("trust_score", assessment.TrustScore),
		zap.Strings("reasons", reasons),
	)

	return assessment
}

// TrustScore blends the component scores. Without an email its weight moves to device and behaviour.
func TrustScore(device int, email *int, behavior int) int {
	var blended float64
	if email != nil {
		blended = 0.4*float64(device) + 0.3*float64(*email) + 0.3*float64(behavior)
	} else {
		blended = (0.4*float64(device) + 0.3*float64(behavior)) / 0.7
	}
	return domain.ClampScore(int(math.Round(blended)))
}

func (e *RiskEngine) degraded(op domain.Operation, err error) {
	e.metrics.Degraded(string(op), string(e.policy.Mode(op)))
	e.logger.Warn("Risk input unavailable, scoring without it",
		zap.String("operation", string(op)),
		zap.Error(err),
	)
}

