package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/infra/telemetry"
)

// ReserveMonitor keeps off-chain payout commitments within the on-chain reserve.
type ReserveMonitor struct {
	uow        port.UnitOfWork
	reserve    port.ReserveRepository
	chain      port.ChainClient
	events     port.EventPublisher
	metrics    *telemetry.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	balanceTTL time.Duration
	now        func() time.Time

	mu         sync.Mutex
	observed   decimal.Decimal
	observedAt time.Time
}

// NewReserveMonitor constructs a ReserveMonitor. The chain balance is cached for at most balanceTTL.
func NewReserveMonitor(uow port.UnitOfWork, reserve port.ReserveRepository, chain port.ChainClient, events port.EventPublisher, balanceTTL time.Duration, metrics *telemetry.Metrics, logger *zap.Logger) *ReserveMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReserveMonitor{
		uow:        uow,
		reserve:    reserve,
		chain:      chain,
		events:     events,
		metrics:    metrics,
		logger:     logger,
		tracer:     otel.Tracer("github.com/arklim/kether-core/internal/usecase"),
		balanceTTL: balanceTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (m *ReserveMonitor) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

func (m *ReserveMonitor) observedBalance(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.observedAt.IsZero() && now.Sub(m.observedAt) < m.balanceTTL {
		return m.observed, nil
	}

	balance, err := m.chain.ReserveBalance(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrChainUnavailable) {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("reserve balance: %w: %w", domain.ErrChainUnavailable, err)
	}

	m.observed = balance
	m.observedAt = now
	return balance, nil
}

// GetReserveReport compares the observed on-chain balance with committed liability.
func (m *ReserveMonitor) GetReserveReport(ctx context.Context) (*domain.ReserveSnapshot, error) {
	observed, err := m.observedBalance(ctx)
	if err != nil {
		return nil, err
	}
	committed, err := m.reserve.CommittedLiability(ctx)
	if err != nil {
		return nil, storeError("committed liability", err)
	}

	snapshot := &domain.ReserveSnapshot{
		ObservedOnChainBalance:     observed,
		CommittedOffChainLiability: committed,
		Timestamp:                  m.now(),
	}
	m.metrics.ReserveHeadroom(snapshot.Headroom().InexactFloat64())
	return snapshot, nil
}

// AuthorizePayout commits amount against the reserve. The check and the commitment happen under
// a row lock on the reserve state, so concurrent authorizations cannot jointly overdraw it.
func (m *ReserveMonitor) AuthorizePayout(ctx context.Context, identityID string, amount decimal.Decimal) (*domain.Payout, error) {
	ctx, span := m.tracer.Start(ctx, "reserve.authorize_payout")
	defer span.End()

	payout, snapshot, err := m.authorizePayout(ctx, identityID, amount)
	if err != nil {
		m.metrics.PayoutDecision(domain.ErrorCode(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.ErrorCode(err))
		if errors.Is(err, domain.ErrReserveExceeded) {
			m.logger.Warn("Payout rejected by reserve",
				zap.String("identity_id", identityID),
				zap.String("amount", amount.String()),
			)
		}
		return nil, err
	}

	headroom := snapshot.Headroom()
	m.metrics.PayoutDecision("authorized")
	m.metrics.ReserveHeadroom(headroom.InexactFloat64())
	span.SetAttributes(
		attribute.String("payout.id", payout.ID),
		attribute.String("payout.amount", amount.String()),
	)

	m.logger.Info("Payout authorized",
		zap.String("payout_id", payout.ID),
		zap.String("identity_id", identityID),
		zap.String("amount", amount.String()),
		zap.String("headroom", headroom.String()),
	)

	if m.events != nil {
		event := domain.PayoutAuthorizedEvent{
			EventID:      uuid.NewString(),
			PayoutID:     payout.ID,
			IdentityID:   identityID,
			Amount:       amount,
			Headroom:     headroom,
			AuthorizedAt: payout.AuthorizedAt,
		}
		publishEvent(m.logger, "payout.authorized", func() error {
			return m.events.PublishPayoutAuthorized(ctx, event)
		})
	}

	return payout, nil
}

func (m *ReserveMonitor) authorizePayout(ctx context.Context, identityID string, amount decimal.Decimal) (*domain.Payout, *domain.ReserveSnapshot, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, nil, invalidInput("identity id is required")
	}
	if !amount.IsPositive() {
		return nil, nil, invalidInput("amount must be positive")
	}

	observed, err := m.observedBalance(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := m.now()
	payout := &domain.Payout{
		ID:           uuid.NewString(),
		IdentityID:   identityID,
		Amount:       amount,
		Status:       domain.PayoutAuthorized,
		AuthorizedAt: now,
	}
	snapshot := &domain.ReserveSnapshot{ObservedOnChainBalance: observed, Timestamp: now}

	err = m.uow.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		if _, err := repos.Identities.GetByID(ctx, identityID); err != nil {
			return err
		}

		committed, err := repos.Reserve.LockCommitted(ctx)
		if err != nil {
			return fmt.Errorf("lock reserve: %w", err)
		}
		snapshot.CommittedOffChainLiability = committed
		if !snapshot.Allows(amount) {
			return fmt.Errorf("committed %s + %s > observed %s: %w", committed, amount, observed, domain.ErrReserveExceeded)
		}

		if err := repos.Reserve.CreatePayout(ctx, *payout); err != nil {
			return fmt.Errorf("create payout: %w", err)
		}
		if err := repos.Reserve.AdjustCommitted(ctx, amount, now); err != nil {
			return fmt.Errorf("commit reserve: %w", err)
		}
		snapshot.CommittedOffChainLiability = committed.Add(amount)
		return nil
	})
	if err != nil {
		return nil, nil, storeError("authorize payout", err)
	}

	return payout, snapshot, nil
}

// ListPayouts returns payouts in status, newest first.
func (m *ReserveMonitor) ListPayouts(ctx context.Context, status domain.PayoutStatus, limit int) ([]domain.Payout, error) {
	payouts, err := m.reserve.ListPayouts(ctx, status, limit)
	if err != nil {
		return nil, storeError("list payouts", err)
	}
	return payouts, nil
}
