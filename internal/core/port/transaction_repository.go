package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arklim/kether-core/internal/core/domain"
)

// TransactionRepository tracks on-chain transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx domain.ChainTransaction) error
	GetByHash(ctx context.Context, hash string) (*domain.ChainTransaction, error)
	// Transition moves a pending transaction to a terminal status. It reports false when
	// the row was no longer pending.
	Transition(ctx context.Context, hash string, to domain.TxStatus, blockNumber *uint64, reason *string, at time.Time) (bool, error)
	SumConfirmed(ctx context.Context, identityID string, kind domain.TxKind) (decimal.Decimal, error)
	CountPending(ctx context.Context, identityID string) (int, error)
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.ChainTransaction, error)
	ListByIdentity(ctx context.Context, identityID string, limit int) ([]domain.ChainTransaction, error)
}

// ReserveRepository stores payout commitments against the on-chain reserve.
type ReserveRepository interface {
	// LockCommitted reads the committed liability under a row lock on the reserve state.
	LockCommitted(ctx context.Context) (decimal.Decimal, error)
	CommittedLiability(ctx context.Context) (decimal.Decimal, error)
	AdjustCommitted(ctx context.Context, delta decimal.Decimal, at time.Time) error
	CreatePayout(ctx context.Context, payout domain.Payout) error
	GetPayout(ctx context.Context, id string) (*domain.Payout, error)
	TransitionPayout(ctx context.Context, id string, from, to domain.PayoutStatus) (bool, error)
	ListPayouts(ctx context.Context, status domain.PayoutStatus, limit int) ([]domain.Payout, error)
}
