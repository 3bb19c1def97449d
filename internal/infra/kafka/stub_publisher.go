package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, identityID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("identity_id", identityID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

func (p *StubPublisher) PublishIdentityCreated(_ context.Context, event domain.IdentityCreatedEvent) error {
	event.WalletAddress = logger.MaskWallet(event.WalletAddress)
	p.logEvent(TopicIdentityCreated, event.IdentityID, event.CreatedAt, identityCreatedPayload(event))
	return nil
}

func (p *StubPublisher) PublishLedgerCredited(_ context.Context, event domain.LedgerCreditedEvent) error {
	p.logEvent(TopicLedgerCredited, event.IdentityID, event.CreditedAt, ledgerCreditedPayload(event))
	return nil
}

func (p *StubPublisher) PublishPayoutAuthorized(_ context.Context, event domain.PayoutAuthorizedEvent) error {
	p.logEvent(TopicPayoutAuthorized, event.IdentityID, event.AuthorizedAt, payoutAuthorizedPayload(event))
	return nil
}

func (p *StubPublisher) PublishTransactionSettled(_ context.Context, event domain.TransactionSettledEvent) error {
	p.logEvent(TopicTransactionSettled, event.IdentityID, event.SettledAt, transactionSettledPayload(event))
	return nil
}

func (p *StubPublisher) PublishReconciliationMismatch(_ context.Context, event domain.ReconciliationMismatchEvent) error {
	p.logEvent(TopicReconciliationMismatch, event.IdentityID, event.DetectedAt, reconciliationMismatchPayload(event))
	return nil
}

func (p *StubPublisher) PublishSuspiciousActivity(_ context.Context, event domain.SuspiciousActivityEvent) error {
	event.IPAddress = logger.MaskIP(event.IPAddress)
	p.logEvent(TopicSuspiciousActivity, "", event.DetectedAt, suspiciousActivityPayload(event))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
