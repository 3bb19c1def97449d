package domain

import "time"

// LedgerKind classifies a ledger entry.
type LedgerKind string

const (
	LedgerKindMint          LedgerKind = "mint"
	LedgerKindReward        LedgerKind = "reward"
	LedgerKindReferralBonus LedgerKind = "referral_bonus"
	LedgerKindSpend         LedgerKind = "spend"
	LedgerKindBurn          LedgerKind = "burn"
)

// Valid reports whether k is a known ledger kind.
func (k LedgerKind) Valid() bool {
	switch k {
	case LedgerKindMint, LedgerKindReward, LedgerKindReferralBonus, LedgerKindSpend, LedgerKindBurn:
		return true
	}
	return false
}

// IsDebit reports whether entries of this kind reduce the balance.
func (k LedgerKind) IsDebit() bool {
	return k == LedgerKindSpend || k == LedgerKindBurn
}

// LedgerEntry is an append-only balance change. Amount is signed.
type LedgerEntry struct {
	ID            string
	IdentityID    string
	Amount        int64
	Kind          LedgerKind
	Reference     string
	SourceID      *string
	RelatedTxHash *string
	CreatedAt     time.Time
}

// LedgerBalance is the folded view of an identity's entries.
type LedgerBalance struct {
	Total     int64
	Available int64
}

// Fold derives balances from entries: available is the signed sum, total the sum of credits.
func Fold(entries []LedgerEntry) LedgerBalance {
	var b LedgerBalance
	for _, e := range entries {
		b.Available += e.Amount
		if e.Amount > 0 {
			b.Total += e.Amount
		}
	}
	return b
}

// MaxReferralDepth is the deepest upline level that is tracked.
const MaxReferralDepth = 3

// MaxLedgerAmount bounds a single credit or spend.
const MaxLedgerAmount int64 = 1_000_000_000

// ReferralEdge links a referee to one of its upline referrers.
type ReferralEdge struct {
	ReferrerID string
	RefereeID  string
	Level      int
	CreatedAt  time.Time
}

// ReferralStats summarises an identity's downline.
type ReferralStats struct {
	Level1Count int
	Level2Count int
	Level3Count int
	TotalEarned int64
}

// ReferralBonusBasisPoints holds the bonus share per upline level, in basis points.
var ReferralBonusBasisPoints = map[int]int64{
	1: 1000,
	2: 500,
	3: 200,
}

// ReferralBonus returns the floored bonus owed to the upline at level for amount.
func ReferralBonus(level int, amount int64) int64 {
	bps, ok := ReferralBonusBasisPoints[level]
	if !ok || amount <= 0 {
		return 0
	}
	return amount * bps / 10000
}
