package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IdentityCreatedEvent represents the payload for kether.identity.created messages.
type IdentityCreatedEvent struct {
	EventID       string
	IdentityID    string
	WalletAddress string
	ReferralCode  string
	ReferrerID    *string
	CreatedAt     time.Time
}

// LedgerCreditedEvent represents the payload for kether.ledger.credited messages.
type LedgerCreditedEvent struct {
	EventID    string
	IdentityID string
	Kind       LedgerKind
	Amount     int64
	Reference  string
	Bonuses    []LedgerEntry
	CreditedAt time.Time
}

// PayoutAuthorizedEvent represents the payload for kether.payout.authorized messages.
type PayoutAuthorizedEvent struct {
	EventID      string
	PayoutID     string
	IdentityID   string
	Amount       decimal.Decimal
	Headroom     decimal.Decimal
	AuthorizedAt time.Time
}

// TransactionSettledEvent represents the payload for kether.transaction.settled messages.
type TransactionSettledEvent struct {
	EventID     string
	Hash        string
	IdentityID  string
	Kind        TxKind
	Status      TxStatus
	BlockNumber *uint64
	Reason      *string
	SettledAt   time.Time
}

// ReconciliationMismatchEvent represents the payload for kether.reconciliation.mismatch messages.
type ReconciliationMismatchEvent struct {
	EventID       string
	IdentityID    string
	LedgerMinted  decimal.Decimal
	OnChainMinted decimal.Decimal
	DetectedAt    time.Time
}

// SuspiciousActivityEvent represents the payload for kether.security.suspicious messages.
type SuspiciousActivityEvent struct {
	EventID    string
	IPAddress  string
	Reason     string
	Attempts   int64
	DetectedAt time.Time
}
