package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDefaultFailurePolicy(t *testing.T) {
	policy := DefaultFailurePolicy()

	for _, op := range []Operation{OperationRateLimit, OperationSuspiciousActivity, OperationRiskSignal, OperationSessionRevocation, OperationEventPublish} {
		if !policy.FailOpen(op) {
			t.Errorf("%s should fail open", op)
		}
	}
	for _, op := range []Operation{OperationChallenge, OperationLedger, OperationReserve, OperationTransaction, OperationRewardClaim, Operation("unknown")} {
		if policy.FailOpen(op) {
			t.Errorf("%s should fail closed", op)
		}
	}
}

func TestFailurePolicyOverrides(t *testing.T) {
	base := DefaultFailurePolicy()
	policy := base.WithOverrides(map[string]string{
		"Rate_Limit": "closed",
		"challenge":  "OPEN",
		"reserve":    "open",
		"ledger":     "open",
	})

	if policy.FailOpen(OperationRateLimit) {
		t.Fatal("rate_limit override to closed was ignored")
	}
	if !policy.FailOpen(OperationChallenge) {
		t.Fatal("challenge override to open was ignored")
	}
	if policy.FailOpen(OperationReserve) || policy.FailOpen(OperationLedger) {
		t.Fatal("money paths must stay closed")
	}
	if !base.FailOpen(OperationRateLimit) {
		t.Fatal("overrides must not mutate the original policy")
	}
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("authorize: %w", ErrReserveExceeded)
	if got := ErrorCode(wrapped); got != "reserve_exceeded" {
		t.Fatalf("expected reserve_exceeded, got %s", got)
	}
	if got := ErrorCode(errors.New("boom")); got != "internal" {
		t.Fatalf("expected internal, got %s", got)
	}
	if got := ErrorCode(fmt.Errorf("op: %w: %w", ErrStoreUnavailable, errors.New("dial"))); got != "store_unavailable" {
		t.Fatalf("expected store_unavailable, got %s", got)
	}
}
