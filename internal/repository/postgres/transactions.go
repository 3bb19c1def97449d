package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/repository"
)

var transactionColumns = []string{
	"hash",
	"identity_id",
	"kind",
	"amount::text",
	"payout_id",
	"status",
	"block_number",
	"fail_reason",
	"created_at",
	"updated_at",
}

// TransactionRepository implements port.TransactionRepository using PostgreSQL.
type TransactionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTransactionRepository constructs a chain transaction repository.
func NewTransactionRepository(exec pgExecutor) *TransactionRepository {
	repo := &TransactionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *TransactionRepository) WithTx(tx pgx.Tx) *TransactionRepository {
	if tx == nil {
		return r
	}
	return &TransactionRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a pending transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx domain.ChainTransaction) error {
	stmt, args, err := r.builder.Insert("kether.chain_transactions").
		Columns("hash", "identity_id", "kind", "amount", "payout_id", "status", "created_at", "updated_at").
		Values(
			tx.Hash,
			tx.IdentityID,
			string(tx.Kind),
			tx.Amount,
			optionalString(tx.PayoutID),
			string(domain.TxStatusPending),
			tx.CreatedAt.UTC(),
			tx.CreatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert transaction sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert transaction: %w", mapWriteError(err))
	}
	return nil
}

// GetByHash loads a tracked transaction.
func (r *TransactionRepository) GetByHash(ctx context.Context, hash string) (*domain.ChainTransaction, error) {
	stmt, args, err := r.builder.Select(transactionColumns...).
		From("kether.chain_transactions").
		Where(squirrel.Eq{"hash": hash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select transaction sql: %w", err)
	}

	tx, err := scanTransaction(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return tx, nil
}

// Transition performs the pending to terminal compare-and-swap.
func (r *TransactionRepository) Transition(ctx context.Context, hash string, to domain.TxStatus, blockNumber *uint64, reason *string, at time.Time) (bool, error) {
	var block any
	if blockNumber != nil {
		block = int64(*blockNumber)
	}

	stmt, args, err := r.builder.Update("kether.chain_transactions").
		Set("status", string(to)).
		Set("block_number", block).
		Set("fail_reason", optionalString(reason)).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"hash": hash, "status": string(domain.TxStatusPending)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build transition sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("transition transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SumConfirmed totals confirmed transactions of one kind for an identity.
func (r *TransactionRepository) SumConfirmed(ctx context.Context, identityID string, kind domain.TxKind) (decimal.Decimal, error) {
	stmt, args, err := r.builder.
		Select("COALESCE(SUM(amount), 0)::text").
		From("kether.chain_transactions").
		Where(squirrel.Eq{
			"identity_id": identityID,
			"kind":        string(kind),
			"status":      string(domain.TxStatusConfirmed),
		}).
		ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build sum confirmed sql: %w", err)
	}

	var raw string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("sum confirmed transactions: %w", err)
	}
	return parseNumeric(raw)
}

// CountPending counts pending transactions for an identity.
func (r *TransactionRepository) CountPending(ctx context.Context, identityID string) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("kether.chain_transactions").
		Where(squirrel.Eq{"identity_id": identityID, "status": string(domain.TxStatusPending)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count pending sql: %w", err)
	}

	var count int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending transactions: %w", err)
	}
	return int(count), nil
}

// ListPending returns pending transactions created before olderThan, oldest first.
func (r *TransactionRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.ChainTransaction, error) {
	query := r.builder.Select(transactionColumns...).
		From("kether.chain_transactions").
		Where(squirrel.Eq{"status": string(domain.TxStatusPending)}).
		Where(squirrel.Lt{"created_at": olderThan.UTC()}).
		OrderBy("created_at ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return r.list(ctx, query)
}

// ListByIdentity returns the most recent transactions of an identity.
func (r *TransactionRepository) ListByIdentity(ctx context.Context, identityID string, limit int) ([]domain.ChainTransaction, error) {
	query := r.builder.Select(transactionColumns...).
		From("kether.chain_transactions").
		Where(squirrel.Eq{"identity_id": identityID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return r.list(ctx, query)
}

func (r *TransactionRepository) list(ctx context.Context, query squirrel.SelectBuilder) ([]domain.ChainTransaction, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list transactions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.ChainTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.ChainTransaction, error) {
	var (
		tx          domain.ChainTransaction
		kind        string
		status      string
		amount      string
		payoutID    sql.NullString
		blockNumber sql.NullInt64
		failReason  sql.NullString
	)

	if err := row.Scan(
		&tx.Hash,
		&tx.IdentityID,
		&kind,
		&amount,
		&payoutID,
		&status,
		&blockNumber,
		&failReason,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := parseNumeric(amount)
	if err != nil {
		return nil, err
	}
	tx.Amount = parsed
	tx.Kind = domain.TxKind(kind)
	tx.Status = domain.TxStatus(status)
	tx.PayoutID = nullableStringPtr(payoutID)
	tx.FailReason = nullableStringPtr(failReason)
	if blockNumber.Valid {
		block := uint64(blockNumber.Int64)
		tx.BlockNumber = &block
	}
	return &tx, nil
}

var _ port.TransactionRepository = (*TransactionRepository)(nil)
