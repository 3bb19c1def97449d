package port

import (
	"context"

	"github.com/arklim/kether-core/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishIdentityCreated(ctx context.Context, event domain.IdentityCreatedEvent) error
	PublishLedgerCredited(ctx context.Context, event domain.LedgerCreditedEvent) error
	PublishPayoutAuthorized(ctx context.Context, event domain.PayoutAuthorizedEvent) error
	PublishTransactionSettled(ctx context.Context, event domain.TransactionSettledEvent) error
	PublishReconciliationMismatch(ctx context.Context, event domain.ReconciliationMismatchEvent) error
	PublishSuspiciousActivity(ctx context.Context, event domain.SuspiciousActivityEvent) error
}
