package domain

import "errors"

// CodedError is a sentinel carrying a stable machine-readable code.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string {
	return e.Message
}

func newCoded(code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

var (
	ErrInvalidInput       = newCoded("invalid_input", "invalid input")
	ErrInvalidAddress     = newCoded("invalid_address", "invalid wallet address")
	ErrUnauthorized       = newCoded("unauthorized", "unauthorized")
	ErrSignatureMismatch  = newCoded("signature_mismatch", "signature does not match wallet")
	ErrChallengeExpired   = newCoded("challenge_expired", "challenge expired or already used")
	ErrRateLimited        = newCoded("rate_limited", "rate limit exceeded")
	ErrReserveExceeded    = newCoded("reserve_exceeded", "payout exceeds on-chain reserve")
	ErrStoreUnavailable   = newCoded("store_unavailable", "persistent store unavailable")
	ErrChainUnavailable   = newCoded("chain_unavailable", "blockchain unavailable")
	ErrInsufficientPoints = newCoded("insufficient_points", "insufficient available points")
	ErrTransactionFinal   = newCoded("transaction_final", "transaction already in a terminal state")
	ErrNotFound           = newCoded("not_found", "not found")
	ErrConflict           = newCoded("conflict", "conflict")
)

// ErrorCode returns the stable code of the first coded error in err's chain.
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return "internal"
}
