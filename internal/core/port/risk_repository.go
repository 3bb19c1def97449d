package port

import (
	"context"
	"time"

	"github.com/arklim/kether-core/internal/core/domain"
)

// RiskSignalRepository stores the append-only risk signal log.
type RiskSignalRepository interface {
	Record(ctx context.Context, signal domain.RiskSignal) error
	CountIdentitiesByFingerprint(ctx context.Context, fingerprint string, since time.Time) (int, error)
	CountIdentitiesByIP(ctx context.Context, ip string, since time.Time) (int, error)
}
