package logger

import (
	"context"
	"net/netip"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "kether-core"

// New builds the process logger. Production emits JSON at info level; any
// other env gets the colored console encoder at debug level.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.InitialFields = map[string]any{"service": serviceName, "env": env}

	return cfg.Build()
}

type requestIDKey struct{}

// ContextWithRequestID stores the correlation id used in access logs.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation id, or "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// MaskEmail keeps up to three leading characters of the local part and the domain.
// john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return "***"
	}
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***@" + domain
}

// MaskWallet keeps the 0x prefix, two leading and four trailing hex digits.
// 0x52908400098527886e0f7030069857d2e4169ee7 -> 0x52***9ee7
func MaskWallet(wallet string) string {
	if wallet == "" {
		return ""
	}
	if len(wallet) < 10 {
		return "***"
	}
	return wallet[:4] + "***" + wallet[len(wallet)-4:]
}

// MaskIP hides the host part: the last two octets of IPv4 and the last four
// groups of IPv6 (in expanded form). Unparseable input is fully masked.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "***"
	}
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return strconv.Itoa(int(b[0])) + "." + strconv.Itoa(int(b[1])) + ".*.*"
	}
	groups := strings.Split(addr.StringExpanded(), ":")
	return strings.Join(groups[:4], ":") + ":*:*:*:*"
}

// MaskString shows the first and last two characters of opaque values such
// as social handles. Values of four characters or fewer are fully masked.
func MaskString(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}
