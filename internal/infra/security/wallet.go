package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	walletLinePrefix    = "Wallet: "
	nonceLinePrefix     = "Nonce: "
	timestampLinePrefix = "Timestamp: "
	signatureLength     = 65
)

var (
	ErrMalformedSignature = errors.New("wallet: malformed signature")
	ErrMalformedMessage   = errors.New("wallet: malformed challenge message")
)

// ChallengeFields are the values carried by a signed challenge message.
type ChallengeFields struct {
	Wallet       string
	Nonce        string
	Timestamp    time.Time
	HasTimestamp bool
}

// BuildChallengeMessage renders the text a wallet is asked to sign. The client appends a
// "Timestamp:" line before signing; the server never embeds one.
func BuildChallengeMessage(appName, wallet, nonce string) string {
	var b strings.Builder
	b.WriteString(appName)
	b.WriteString(" wants you to sign in with your wallet.\n\n")
	b.WriteString(walletLinePrefix)
	b.WriteString(wallet)
	b.WriteString("\n")
	b.WriteString(nonceLinePrefix)
	b.WriteString(nonce)
	return b.String()
}

// AppendTimestamp adds the client timestamp line to a challenge message.
func AppendTimestamp(message string, at time.Time) string {
	return message + "\n" + timestampLinePrefix + at.UTC().Format(time.RFC3339)
}

// ParseChallengeMessage extracts the wallet, nonce and optional timestamp lines.
// The timestamp accepts RFC 3339 or unix milliseconds.
func ParseChallengeMessage(message string) (ChallengeFields, error) {
	var fields ChallengeFields
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, walletLinePrefix):
			fields.Wallet = strings.TrimSpace(strings.TrimPrefix(line, walletLinePrefix))
		case strings.HasPrefix(line, nonceLinePrefix):
			fields.Nonce = strings.TrimSpace(strings.TrimPrefix(line, nonceLinePrefix))
		case strings.HasPrefix(line, timestampLinePrefix):
			ts, err := parseClientTimestamp(strings.TrimSpace(strings.TrimPrefix(line, timestampLinePrefix)))
			if err != nil {
				return ChallengeFields{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
			}
			fields.Timestamp = ts
			fields.HasTimestamp = true
		}
	}
	if fields.Wallet == "" || fields.Nonce == "" {
		return ChallengeFields{}, ErrMalformedMessage
	}
	return fields, nil
}

func parseClientTimestamp(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

// RecoverAddress returns the lower-case address that produced an EIP-191 personal_sign
// signature over message.
func RecoverAddress(message, signature string) (string, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != signatureLength {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, signatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return "", fmt.Errorf("%w: invalid recovery id", ErrMalformedSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}
