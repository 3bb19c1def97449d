package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arklim/kether-core/internal/core/port"
)

type txBeginner interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Identities   *IdentityRepository
	Ledger       *LedgerRepository
	Referrals    *ReferralRepository
	RiskSignals  *RiskSignalRepository
	Transactions *TransactionRepository
	Reserve      *ReserveRepository
	SocialLinks  *SocialLinkRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Identities:   NewIdentityRepository(exec),
		Ledger:       NewLedgerRepository(exec),
		Referrals:    NewReferralRepository(exec),
		RiskSignals:  NewRiskSignalRepository(exec),
		Transactions: NewTransactionRepository(exec),
		Reserve:      NewReserveRepository(exec),
		SocialLinks:  NewSocialLinkRepository(exec),
	}
}

// WithTx binds every repository to tx.
func (r *Repositories) WithTx(tx pgx.Tx) port.Repositories {
	return port.Repositories{
		Identities:   r.Identities.WithTx(tx),
		Ledger:       r.Ledger.WithTx(tx),
		Referrals:    r.Referrals.WithTx(tx),
		Transactions: r.Transactions.WithTx(tx),
		Reserve:      r.Reserve.WithTx(tx),
		SocialLinks:  r.SocialLinks.WithTx(tx),
	}
}

// UnitOfWork implements port.UnitOfWork over pgx transactions.
type UnitOfWork struct {
	db    txBeginner
	repos *Repositories
}

// NewUnitOfWork constructs a unit of work for db.
func NewUnitOfWork(db txBeginner, repos *Repositories) *UnitOfWork {
	if repos == nil {
		repos = NewRepositories(db)
	}
	return &UnitOfWork{db: db, repos: repos}
}

// Do runs fn in one transaction and commits when it returns nil.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, u.repos.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

var _ port.UnitOfWork = (*UnitOfWork)(nil)
