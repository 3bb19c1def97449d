package port

import (
	"context"
	"time"

	"github.com/arklim/kether-core/internal/core/domain"
)

// IdentityRepository exposes persistence behavior for wallet identities.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByWallet(ctx context.Context, wallet string) (*domain.Identity, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.Identity, error)
	// LockByID reads the identity row under a row lock for the surrounding transaction.
	LockByID(ctx context.Context, id string) (*domain.Identity, error)
	AddPoints(ctx context.Context, id string, amount int64) (*domain.Identity, error)
	// DebitAvailable decrements available points only when the balance covers amount.
	DebitAvailable(ctx context.Context, id string, amount int64) (bool, error)
	UpdateLevel(ctx context.Context, id string, level int) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}
