package port

import (
	"context"
	"time"

	"github.com/arklim/kether-core/internal/core/domain"
)

// LedgerRepository stores append-only ledger entries.
type LedgerRepository interface {
	Append(ctx context.Context, entries ...domain.LedgerEntry) error
	ListByIdentity(ctx context.Context, identityID string) ([]domain.LedgerEntry, error)
	SumByKind(ctx context.Context, identityID string, kind domain.LedgerKind) (int64, error)
	ActiveIdentitiesSince(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// ReferralRepository stores the materialised referral upline.
type ReferralRepository interface {
	CreateEdges(ctx context.Context, edges []domain.ReferralEdge) error
	// ListUpline returns the referee's edges ordered by level.
	ListUpline(ctx context.Context, refereeID string) ([]domain.ReferralEdge, error)
	CountDownline(ctx context.Context, referrerID string) (map[int]int, error)
}
