// Package validation holds pure input checks shared by the use cases and HTTP layer.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/arklim/kether-core/internal/core/domain"
)

// ReferralCodePrefix starts every referral code.
const ReferralCodePrefix = "KC"

var (
	addressPattern      = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	referralCodePattern = regexp.MustCompile(`^KC[0-9A-F]{6}$`)
	txHashPattern       = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// FieldError describes a single rejected field.
type FieldError struct {
	Field   string
	Code    string
	Message string
	cause   error
}

func (e *FieldError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap exposes the domain sentinel so callers can use errors.Is.
func (e *FieldError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return domain.ErrInvalidInput
}

func invalid(field, code, message string) error {
	return &FieldError{Field: field, Code: code, Message: message}
}

// NormalizeAddress returns the canonical lower-case form of a wallet address.
func NormalizeAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !addressPattern.MatchString(trimmed) {
		return "", &FieldError{Field: "wallet_address", Code: "format", Message: "must be 0x followed by 40 hex digits", cause: domain.ErrInvalidAddress}
	}
	return strings.ToLower(trimmed), nil
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ValidateReferralCode checks the KC + 6 upper-case hex format.
func ValidateReferralCode(code string) error {
	if !referralCodePattern.MatchString(code) {
		return invalid("referral_code", "format", "must be KC followed by 6 upper-case hex digits")
	}
	return nil
}

// NormalizeReferralCode trims and upper-cases before validating.
func NormalizeReferralCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if err := ValidateReferralCode(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateTxHash checks a 0x-prefixed 32-byte hex hash and returns it lower-cased.
func ValidateTxHash(hash string) (string, error) {
	trimmed := strings.TrimSpace(hash)
	if !txHashPattern.MatchString(trimmed) {
		return "", invalid("tx_hash", "format", "must be 0x followed by 64 hex digits")
	}
	return strings.ToLower(trimmed), nil
}

// ValidateEmail accepts a bare address (no display name) up to 254 characters.
func ValidateEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" || len(trimmed) > 254 {
		return "", invalid("email", "length", "must be between 1 and 254 characters")
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil || parsed.Address != trimmed || parsed.Name != "" {
		return "", invalid("email", "format", "must be a plain email address")
	}
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 || !strings.Contains(trimmed[at+1:], ".") {
		return "", invalid("email", "format", "domain must contain a dot")
	}
	return trimmed, nil
}

// ValidateString bounds the rune length of a trimmed string.
func ValidateString(field, value string, min, max int) (string, error) {
	trimmed := strings.TrimSpace(value)
	n := utf8.RuneCountInString(trimmed)
	if n < min || (max > 0 && n > max) {
		return "", invalid(field, "length", fmt.Sprintf("must be between %d and %d characters", min, max))
	}
	return trimmed, nil
}

// ValidateRange checks min <= value <= max.
func ValidateRange(field string, value, min, max int64) error {
	if value < min || value > max {
		return invalid(field, "range", fmt.Sprintf("must be between %d and %d", min, max))
	}
	return nil
}
