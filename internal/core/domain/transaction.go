package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus is the lifecycle state of a tracked on-chain transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s TxStatus) Terminal() bool {
	return s == TxStatusConfirmed || s == TxStatusFailed
}

// TxKind distinguishes token movements.
type TxKind string

const (
	TxKindMint   TxKind = "mint"
	TxKindPayout TxKind = "payout"
)

// ChainTransaction is an on-chain transfer tracked off-chain.
type ChainTransaction struct {
	Hash        string
	IdentityID  string
	Kind        TxKind
	Amount      decimal.Decimal
	PayoutID    *string
	Status      TxStatus
	BlockNumber *uint64
	FailReason  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChainReceipt is what the blockchain reports for a transaction hash.
type ChainReceipt struct {
	Found       bool
	Succeeded   bool
	BlockNumber uint64
}

// PayoutStatus tracks a reserve commitment.
type PayoutStatus string

const (
	PayoutAuthorized PayoutStatus = "authorized"
	PayoutSettled    PayoutStatus = "settled"
	PayoutReleased   PayoutStatus = "released"
)

// Payout is an authorized claim against the on-chain reserve.
type Payout struct {
	ID           string
	IdentityID   string
	Amount       decimal.Decimal
	Status       PayoutStatus
	AuthorizedAt time.Time
}

// ReserveSnapshot compares on-chain reserve with off-chain liability.
type ReserveSnapshot struct {
	ObservedOnChainBalance     decimal.Decimal
	CommittedOffChainLiability decimal.Decimal
	Timestamp                  time.Time
}

// Headroom is the amount still authorizable.
func (s ReserveSnapshot) Headroom() decimal.Decimal {
	h := s.ObservedOnChainBalance.Sub(s.CommittedOffChainLiability)
	if h.IsNegative() {
		return decimal.Zero
	}
	return h
}

// Allows reports whether amount fits without pushing liability above the balance.
func (s ReserveSnapshot) Allows(amount decimal.Decimal) bool {
	return !s.CommittedOffChainLiability.Add(amount).GreaterThan(s.ObservedOnChainBalance)
}

// ReconciliationReport compares ledger mints with confirmed on-chain mints for one identity.
type ReconciliationReport struct {
	IdentityID    string
	LedgerMinted  decimal.Decimal
	OnChainMinted decimal.Decimal
	PendingCount  int
	Consistent    bool
	CheckedAt     time.Time
}
