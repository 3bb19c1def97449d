package telemetry

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/kether-core/internal/infra/config"
)

func TestSamplerClampsRate(t *testing.T) {
	cases := []struct {
		rate float64
		want string
	}{
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}

	for _, tc := range cases {
		got := Sampler(tc.rate).Description()
		if !strings.Contains(got, tc.want) {
			t.Fatalf("rate %v: expected description containing %q, got %q", tc.rate, tc.want, got)
		}
	}
}

func TestNewTracerProviderWithoutExporter(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{
		ServiceName:  "kether-core",
		SamplingRate: 1,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new tracer provider: %v", err)
	}

	_, span := tp.TracerProvider().Tracer("test").Start(context.Background(), "op")
	if !span.SpanContext().IsSampled() {
		t.Fatal("expected span to be sampled at rate 1")
	}
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
