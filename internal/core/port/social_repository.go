package port

import (
	"context"

	"github.com/arklim/kether-core/internal/core/domain"
)

// SocialLinkRepository binds social accounts to identities.
type SocialLinkRepository interface {
	// Link returns domain.ErrConflict when the account is already linked.
	Link(ctx context.Context, link domain.SocialLink) error
	GetByAccount(ctx context.Context, platform domain.SocialPlatform, username string) (*domain.SocialLink, error)
	ListByIdentity(ctx context.Context, identityID string) ([]domain.SocialLink, error)
}

// OwnershipVerifier confirms that the caller controls a social account.
type OwnershipVerifier interface {
	Verify(ctx context.Context, claim domain.SocialClaim) (bool, error)
}
