package port

import "context"

// Repositories is the set of transactional repositories handed to a unit of work.
type Repositories struct {
	Identities   IdentityRepository
	Ledger       LedgerRepository
	Referrals    ReferralRepository
	Transactions TransactionRepository
	Reserve      ReserveRepository
	SocialLinks  SocialLinkRepository
}

// UnitOfWork runs fn inside a single database transaction. A non-nil error rolls back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
