package logger

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestMaskHelpers(t *testing.T) {
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"email", MaskEmail("john.doe@example.com"), "joh***@example.com"},
		{"short email", MaskEmail("jo@example.com"), "jo***@example.com"},
		{"not an email", MaskEmail("nobody"), "***"},
		{"wallet", MaskWallet("0x52908400098527886e0f7030069857d2e4169ee7"), "0x52***9ee7"},
		{"short wallet", MaskWallet("0x1234"), "***"},
		{"ipv4", MaskIP("192.168.1.100"), "192.168.*.*"},
		{"mapped ipv4", MaskIP("::ffff:10.0.0.1"), "10.0.*.*"},
		{"ipv6", MaskIP("2001:db8:85a3::8a2e:370:7334"), "2001:0db8:85a3:0000:*:*:*:*"},
		{"bad ip", MaskIP("not-an-ip"), "***"},
		{"string", MaskString("secret123"), "se***23"},
		{"short string", MaskString("abc"), "***"},
		{"empty", MaskWallet(""), ""},
	}

	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, tc.got)
		}
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	ctx := ContextWithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
}

func TestNewTagsService(t *testing.T) {
	log, err := New("development")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level outside production")
	}

	prod, err := New("production")
	if err != nil {
		t.Fatalf("new production logger: %v", err)
	}
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug disabled in production")
	}
}
