package domain

import "strings"

// Operation names a dependency-touching step whose failure handling is policy driven.
type Operation string

const (
	OperationRateLimit          Operation = "rate_limit"
	OperationSuspiciousActivity Operation = "suspicious_activity"
	OperationRiskSignal         Operation = "risk_signal"
	OperationSessionRevocation  Operation = "session_revocation"
	OperationEventPublish       Operation = "event_publish"
	OperationChallenge          Operation = "challenge"
	OperationLedger             Operation = "ledger"
	OperationReserve            Operation = "reserve"
	OperationTransaction        Operation = "transaction"
	OperationRewardClaim        Operation = "reward_claim"
)

// FailureMode decides what happens when an operation's backing store is unreachable.
type FailureMode string

const (
	// FailOpen lets the request continue without the operation's answer.
	FailOpen FailureMode = "open"
	// FailClosed rejects the request.
	FailClosed FailureMode = "closed"
)

// FailurePolicy is the explicit per-operation failure table.
type FailurePolicy struct {
	modes map[Operation]FailureMode
}

// DefaultFailurePolicy keeps monitoring paths open and money paths closed.
func DefaultFailurePolicy() FailurePolicy {
	return FailurePolicy{modes: map[Operation]FailureMode{
		OperationRateLimit:          FailOpen,
		OperationSuspiciousActivity: FailOpen,
		OperationRiskSignal:         FailOpen,
		OperationSessionRevocation:  FailOpen,
		OperationEventPublish:       FailOpen,
		OperationChallenge:          FailClosed,
		OperationLedger:             FailClosed,
		OperationReserve:            FailClosed,
		OperationTransaction:        FailClosed,
		OperationRewardClaim:        FailClosed,
	}}
}

// ParseFailureMode normalises textual input; anything but "open" is closed.
func ParseFailureMode(value string) FailureMode {
	if strings.EqualFold(strings.TrimSpace(value), string(FailOpen)) {
		return FailOpen
	}
	return FailClosed
}

// WithOverrides returns a copy with selected operations replaced. Money paths cannot be opened.
func (p FailurePolicy) WithOverrides(overrides map[string]string) FailurePolicy {
	modes := make(map[Operation]FailureMode, len(p.modes))
	for op, mode := range p.modes {
		modes[op] = mode
	}
	for name, value := range overrides {
		op := Operation(strings.ToLower(strings.TrimSpace(name)))
		if op.moneyPath() {
			continue
		}
		modes[op] = ParseFailureMode(value)
	}
	return FailurePolicy{modes: modes}
}

// Mode returns the failure mode for op; unknown operations fail closed.
func (p FailurePolicy) Mode(op Operation) FailureMode {
	if mode, ok := p.modes[op]; ok {
		return mode
	}
	return FailClosed
}

// FailOpen reports whether op may proceed when its store is unavailable.
func (p FailurePolicy) FailOpen(op Operation) bool {
	return p.Mode(op) == FailOpen
}

func (op Operation) moneyPath() bool {
	switch op {
	case OperationLedger, OperationReserve, OperationTransaction, OperationRewardClaim:
		return true
	}
	return false
}
