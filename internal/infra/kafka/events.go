package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	TopicIdentityCreated        = "identity.created"
	TopicLedgerCredited         = "ledger.credited"
	TopicPayoutAuthorized       = "payout.authorized"
	TopicTransactionSettled     = "transaction.settled"
	TopicReconciliationMismatch = "reconciliation.mismatch"
	TopicSuspiciousActivity     = "security.suspicious_ip"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID    string           `json:"event_id"`
	EventType  string           `json:"event_type"`
	IdentityID string           `json:"identity_id,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Version    string           `json:"version"`
	Payload    any              `json:"payload"`
	Metadata   envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, key, identityID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	topic := p.producer.TopicName(eventType)
	envelope := eventEnvelope{
		EventID:    id,
		EventType:  topic,
		IdentityID: identityID,
		Timestamp:  ts.UTC(),
		Version:    schemaVersion,
		Payload:    payload,
		Metadata:   metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	return p.producer.Send(ctx, topic, key, bytes)
}

// PublishIdentityCreated publishes identity.created events.
func (p *EventPublisher) PublishIdentityCreated(ctx context.Context, event domain.IdentityCreatedEvent) error {
	return p.publish(ctx, event.EventID, TopicIdentityCreated, event.IdentityID, event.IdentityID, event.CreatedAt, identityCreatedPayload(event))
}

// PublishLedgerCredited publishes ledger.credited events.
func (p *EventPublisher) PublishLedgerCredited(ctx context.Context, event domain.LedgerCreditedEvent) error {
	return p.publish(ctx, event.EventID, TopicLedgerCredited, event.IdentityID, event.IdentityID, event.CreditedAt, ledgerCreditedPayload(event))
}

// PublishPayoutAuthorized publishes payout.authorized events.
func (p *EventPublisher) PublishPayoutAuthorized(ctx context.Context, event domain.PayoutAuthorizedEvent) error {
	return p.publish(ctx, event.EventID, TopicPayoutAuthorized, event.PayoutID, event.IdentityID, event.AuthorizedAt, payoutAuthorizedPayload(event))
}

// PublishTransactionSettled publishes transaction.settled events.
func (p *EventPublisher) PublishTransactionSettled(ctx context.Context, event domain.TransactionSettledEvent) error {
	return p.publish(ctx, event.EventID, TopicTransactionSettled, event.Hash, event.IdentityID, event.SettledAt, transactionSettledPayload(event))
}

// PublishReconciliationMismatch publishes reconciliation.mismatch events.
func (p *EventPublisher) PublishReconciliationMismatch(ctx context.Context, event domain.ReconciliationMismatchEvent) error {
	return p.publish(ctx, event.EventID, TopicReconciliationMismatch, event.IdentityID, event.IdentityID, event.DetectedAt, reconciliationMismatchPayload(event))
}

// PublishSuspiciousActivity publishes security.suspicious_ip events.
func (p *EventPublisher) PublishSuspiciousActivity(ctx context.Context, event domain.SuspiciousActivityEvent) error {
	return p.publish(ctx, event.EventID, TopicSuspiciousActivity, event.IPAddress, "", event.DetectedAt, suspiciousActivityPayload(event))
}

func identityCreatedPayload(event domain.IdentityCreatedEvent) any {
	return struct {
		IdentityID    string    `json:"identity_id"`
		WalletAddress string    `json:"wallet_address"`
		ReferralCode  string    `json:"referral_code"`
		ReferrerID    *string   `json:"referrer_id,omitempty"`
		CreatedAt     time.Time `json:"created_at"`
	}{
		IdentityID:    event.IdentityID,
		WalletAddress: event.WalletAddress,
		ReferralCode:  event.ReferralCode,
		ReferrerID:    event.ReferrerID,
		CreatedAt:     event.CreatedAt.UTC(),
	}
}

type bonusPayload struct {
	IdentityID string `json:"identity_id"`
	Amount     int64  `json:"amount"`
}

func ledgerCreditedPayload(event domain.LedgerCreditedEvent) any {
	bonuses := make([]bonusPayload, 0, len(event.Bonuses))
	for _, entry := range event.Bonuses {
		bonuses = append(bonuses, bonusPayload{IdentityID: entry.IdentityID, Amount: entry.Amount})
	}

	return struct {
		IdentityID string         `json:"identity_id"`
		Kind       string         `json:"kind"`
		Amount     int64          `json:"amount"`
		Reference  string         `json:"reference"`
		Bonuses    []bonusPayload `json:"bonuses"`
		CreditedAt time.Time      `json:"credited_at"`
	}{
		IdentityID: event.IdentityID,
		Kind:       string(event.Kind),
		Amount:     event.Amount,
		Reference:  event.Reference,
		Bonuses:    bonuses,
		CreditedAt: event.CreditedAt.UTC(),
	}
}

func payoutAuthorizedPayload(event domain.PayoutAuthorizedEvent) any {
	return struct {
		PayoutID     string          `json:"payout_id"`
		IdentityID   string          `json:"identity_id"`
		Amount       decimal.Decimal `json:"amount"`
		Headroom     decimal.Decimal `json:"headroom"`
		AuthorizedAt time.Time       `json:"authorized_at"`
	}{
		PayoutID:     event.PayoutID,
		IdentityID:   event.IdentityID,
		Amount:       event.Amount,
		Headroom:     event.Headroom,
		AuthorizedAt: event.AuthorizedAt.UTC(),
	}
}

func transactionSettledPayload(event domain.TransactionSettledEvent) any {
	return struct {
		Hash        string    `json:"hash"`
		IdentityID  string    `json:"identity_id"`
		Kind        string    `json:"kind"`
		Status      string    `json:"status"`
		BlockNumber *uint64   `json:"block_number,omitempty"`
		Reason      *string   `json:"reason,omitempty"`
		SettledAt   time.Time `json:"settled_at"`
	}{
		Hash:        event.Hash,
		IdentityID:  event.IdentityID,
		Kind:        string(event.Kind),
		Status:      string(event.Status),
		BlockNumber: event.BlockNumber,
		Reason:      event.Reason,
		SettledAt:   event.SettledAt.UTC(),
	}
}

func reconciliationMismatchPayload(event domain.ReconciliationMismatchEvent) any {
	return struct {
		IdentityID    string          `json:"identity_id"`
		LedgerMinted  decimal.Decimal `json:"ledger_minted"`
		OnChainMinted decimal.Decimal `json:"on_chain_minted"`
		DetectedAt    time.Time       `json:"detected_at"`
	}{
		IdentityID:    event.IdentityID,
		LedgerMinted:  event.LedgerMinted,
		OnChainMinted: event.OnChainMinted,
		DetectedAt:    event.DetectedAt.UTC(),
	}
}

func suspiciousActivityPayload(event domain.SuspiciousActivityEvent) any {
	return struct {
		IPAddress  string    `json:"ip_address"`
		Reason     string    `json:"reason"`
		Attempts   int64     `json:"attempts"`
		DetectedAt time.Time `json:"detected_at"`
	}{
		IPAddress:  event.IPAddress,
		Reason:     event.Reason,
		Attempts:   event.Attempts,
		DetectedAt: event.DetectedAt.UTC(),
	}
}

var _ port.EventPublisher = (*EventPublisher)(nil)
