package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/core/validation"
	"github.com/arklim/kether-core/internal/infra/telemetry"
)

// TransactionTracker follows on-chain transactions from pending to a terminal state.
type TransactionTracker struct {
	uow          port.UnitOfWork
	transactions port.TransactionRepository
	ledger       port.LedgerRepository
	chain        port.ChainClient
	events       port.EventPublisher
	metrics      *telemetry.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewTransactionTracker constructs a TransactionTracker.
func NewTransactionTracker(uow port.UnitOfWork, transactions port.TransactionRepository, ledger port.LedgerRepository, chain port.ChainClient, events port.EventPublisher, metrics *telemetry.Metrics, logger *zap.Logger) *TransactionTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionTracker{
		uow:          uow,
		transactions: transactions,
		ledger:       ledger,
		chain:        chain,
		events:       events,
		metrics:      metrics,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (t *TransactionTracker) WithClock(clock func() time.Time) {
	if clock != nil {
		t.now = clock
	}
}

// RecordPending starts tracking a submitted transaction.
func (t *TransactionTracker) RecordPending(ctx context.Context, tx domain.ChainTransaction) (*domain.ChainTransaction, error) {
	hash, err := validation.ValidateTxHash(tx.Hash)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(tx.IdentityID) == "" {
		return nil, invalidInput("identity id is required")
	}
	if tx.Kind != domain.TxKindMint && tx.Kind != domain.TxKindPayout {
		return nil, invalidInput("unknown transaction kind %q", tx.Kind)
	}
	if !tx.Amount.IsPositive() {
		return nil, invalidInput("amount must be positive")
	}
	if tx.Kind == domain.TxKindPayout && (tx.PayoutID == nil || *tx.PayoutID == "") {
		return nil, invalidInput("payout transactions require a payout id")
	}

	now := t.now()
	tx.Hash = hash
	tx.Status = domain.TxStatusPending
	tx.BlockNumber = nil
	tx.FailReason = nil
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if err := t.transactions.Create(ctx, tx); err != nil {
		return nil, storeError("record transaction", err)
	}

	t.logger.Info("Transaction pending",
		zap.String("hash", hash),
		zap.String("identity_id", tx.IdentityID),
		zap.String("kind", string(tx.Kind)),
	)
	return &tx, nil
}

// Confirm marks a pending transaction confirmed once the chain reports a successful receipt
// in blockNumber. Chain errors fail closed.
func (t *TransactionTracker) Confirm(ctx context.Context, hash string, blockNumber uint64) (*domain.ChainTransaction, error) {
	tx, err := t.pending(ctx, hash)
	if err != nil {
		return nil, err
	}

	receipt, err := t.chain.Receipt(ctx, tx.Hash)
	if err != nil {
		if errors.Is(err, domain.ErrChainUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("receipt: %w: %w", domain.ErrChainUnavailable, err)
	}
	switch {
	case !receipt.Found:
		return nil, invalidInput("transaction %s has no receipt yet", tx.Hash)
	case !receipt.Succeeded:
		return nil, invalidInput("transaction %s reverted on chain", tx.Hash)
	case receipt.BlockNumber != blockNumber:
		return nil, invalidInput("transaction %s was mined in block %d, not %d", tx.Hash, receipt.BlockNumber, blockNumber)
	}

	block := blockNumber
	return t.settle(ctx, tx, domain.TxStatusConfirmed, &block, nil)
}

// Fail marks a pending transaction failed.
func (t *TransactionTracker) Fail(ctx context.Context, hash, reason string) (*domain.ChainTransaction, error) {
	tx, err := t.pending(ctx, hash)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unspecified"
	}
	return t.settle(ctx, tx, domain.TxStatusFailed, nil, &reason)
}

func (t *TransactionTracker) pending(ctx context.Context, hash string) (*domain.ChainTransaction, error) {
	hash, err := validation.ValidateTxHash(hash)
	if err != nil {
		return nil, err
	}
	tx, err := t.transactions.GetByHash(ctx, hash)
	if err != nil {
		return nil, storeError("get transaction", err)
	}
	if tx.Status.Terminal() {
		return nil, fmt.Errorf("transaction %s is %s: %w", hash, tx.Status, domain.ErrTransactionFinal)
	}
	return tx, nil
}

// settle moves tx to status with a compare-and-swap on pending. A payout transaction settles
// (confirmed) or releases (failed) its reserve commitment in the same database transaction.
func (t *TransactionTracker) settle(ctx context.Context, tx *domain.ChainTransaction, status domain.TxStatus, block *uint64, reason *string) (*domain.ChainTransaction, error) {
	now := t.now()

	err := t.uow.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		moved, err := repos.Transactions.Transition(ctx, tx.Hash, status, block, reason, now)
		if err != nil {
			return fmt.Errorf("transition: %w", err)
		}
		if !moved {
			return domain.ErrTransactionFinal
		}

		if tx.Kind != domain.TxKindPayout || tx.PayoutID == nil {
			return nil
		}

		target := domain.PayoutSettled
		if status == domain.TxStatusFailed {
			target = domain.PayoutReleased
		}
		released, err := repos.Reserve.TransitionPayout(ctx, *tx.PayoutID, domain.PayoutAuthorized, target)
		if err != nil {
			return fmt.Errorf("transition payout: %w", err)
		}
		if !released {
			return nil
		}

		payout, err := repos.Reserve.GetPayout(ctx, *tx.PayoutID)
		if err != nil {
			return fmt.Errorf("get payout: %w", err)
		}
		return repos.Reserve.AdjustCommitted(ctx, payout.Amount.Neg(), now)
	})
	if err != nil {
		return nil, storeError("settle transaction", err)
	}

	tx.Status = status
	tx.BlockNumber = block
	tx.FailReason = reason
	tx.UpdatedAt = now

	t.logger.Info("Transaction settled",
		zap.String("hash", tx.Hash),
		zap.String("status", string(status)),
		zap.String("kind", string(tx.Kind)),
	)

	if t.events != nil {
		event := domain.TransactionSettledEvent{
			EventID:     uuid.NewString(),
			Hash:        tx.Hash,
			IdentityID:  tx.IdentityID,
			Kind:        tx.Kind,
			Status:      status,
			BlockNumber: block,
			Reason:      reason,
			SettledAt:   now,
		}
		publishEvent(t.logger, "transaction.settled", func() error {
			return t.events.PublishTransactionSettled(ctx, event)
		})
	}

	return tx, nil
}

// CheckPending looks up receipts for transactions pending since before olderThan and settles
// the ones the chain has decided. It returns how many were settled.
func (t *TransactionTracker) CheckPending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	pending, err := t.transactions.ListPending(ctx, olderThan, limit)
	if err != nil {
		return 0, storeError("list pending", err)
	}

	settled := 0
	for _, tx := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}

		receipt, err := t.chain.Receipt(ctx, tx.Hash)
		if err != nil {
			t.logger.Warn("Failed to fetch receipt for pending transaction", zap.String("hash", tx.Hash), zap.Error(err))
			continue
		}
		if !receipt.Found {
			continue
		}

		if receipt.Succeeded {
			_, err = t.Confirm(ctx, tx.Hash, receipt.BlockNumber)
		} else {
			_, err = t.Fail(ctx, tx.Hash, "reverted on chain")
		}
		switch {
		case err == nil:
			settled++
		case errors.Is(err, domain.ErrTransactionFinal):
			// settled concurrently
		default:
			t.logger.Warn("Failed to settle pending transaction", zap.String("hash", tx.Hash), zap.Error(err))
		}
	}

	return settled, nil
}

// ValidateUserTransactions compares the identity's ledger mints with its confirmed on-chain
// mints. A mismatch is reported, never corrected.
func (t *TransactionTracker) ValidateUserTransactions(ctx context.Context, identityID string) (*domain.ReconciliationReport, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, invalidInput("identity id is required")
	}

	minted, err := t.ledger.SumByKind(ctx, identityID, domain.LedgerKindMint)
	if err != nil {
		return nil, storeError("sum ledger mints", err)
	}
	onChain, err := t.transactions.SumConfirmed(ctx, identityID, domain.TxKindMint)
	if err != nil {
		return nil, storeError("sum confirmed mints", err)
	}
	pendingCount, err := t.transactions.CountPending(ctx, identityID)
	if err != nil {
		return nil, storeError("count pending", err)
	}

	report := &domain.ReconciliationReport{
		IdentityID:    identityID,
		LedgerMinted:  decimal.NewFromInt(minted),
		OnChainMinted: onChain,
		PendingCount:  pendingCount,
		CheckedAt:     t.now(),
	}
	report.Consistent = report.LedgerMinted.Equal(report.OnChainMinted)
	t.metrics.Reconciliation(report.Consistent)

	if !report.Consistent {
		t.logger.Warn("Ledger and chain disagree",
			zap.String("identity_id", identityID),
			zap.String("ledger_minted", report.LedgerMinted.String()),
			zap.String("on_chain_minted", report.OnChainMinted.String()),
			zap.Int("pending", pendingCount),
		)
		if t.events != nil {
			event := domain.ReconciliationMismatchEvent{
				EventID:       uuid.NewString(),
				IdentityID:    identityID,
				LedgerMinted:  report.LedgerMinted,
				OnChainMinted: report.OnChainMinted,
				DetectedAt:    report.CheckedAt,
			}
			publishEvent(t.logger, "reconciliation.mismatch", func() error {
				return t.events.PublishReconciliationMismatch(ctx, event)
			})
		}
	}

	return report, nil
}

// ListByIdentity returns the identity's most recent transactions.
func (t *TransactionTracker) ListByIdentity(ctx context.Context, identityID string, limit int) ([]domain.ChainTransaction, error) {
	txs, err := t.transactions.ListByIdentity(ctx, identityID, limit)
	if err != nil {
		return nil, storeError("list transactions", err)
	}
	return txs, nil
}
