package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
)

// LedgerRepository implements port.LedgerRepository using PostgreSQL.
type LedgerRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLedgerRepository constructs a ledger repository.
func NewLedgerRepository(exec pgExecutor) *LedgerRepository {
	repo := &LedgerRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *LedgerRepository) WithTx(tx pgx.Tx) *LedgerRepository {
	if tx == nil {
		return r
	}
	return &LedgerRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Append inserts entries in a single statement.
func (r *LedgerRepository) Append(ctx context.Context, entries ...domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := r.builder.Insert("kether.ledger_entries").
		Columns("id", "identity_id", "amount", "kind", "reference", "source_id", "related_tx_hash", "created_at")
	for _, entry := range entries {
		query = query.Values(
			entry.ID,
			entry.IdentityID,
			entry.Amount,
			string(entry.Kind),
			entry.Reference,
			optionalString(entry.SourceID),
			optionalString(entry.RelatedTxHash),
			entry.CreatedAt.UTC(),
		)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert ledger entries sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

// ListByIdentity returns every entry of an identity in insertion order.
func (r *LedgerRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.LedgerEntry, error) {
	stmt, args, err := r.builder.
		Select("id", "identity_id", "amount", "kind", "reference", "source_id", "related_tx_hash", "created_at").
		From("kether.ledger_entries").
		Where(squirrel.Eq{"identity_id": identityID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list ledger entries sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			entry    domain.LedgerEntry
			kind     string
			sourceID sql.NullString
			txHash   sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.IdentityID,
			&entry.Amount,
			&kind,
			&entry.Reference,
			&sourceID,
			&txHash,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.Kind = domain.LedgerKind(kind)
		entry.SourceID = nullableStringPtr(sourceID)
		entry.RelatedTxHash = nullableStringPtr(txHash)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// SumByKind totals the entries of one kind for an identity.
func (r *LedgerRepository) SumByKind(ctx context.Context, identityID string, kind domain.LedgerKind) (int64, error) {
	stmt, args, err := r.builder.
		Select("COALESCE(SUM(amount), 0)").
		From("kether.ledger_entries").
		Where(squirrel.Eq{"identity_id": identityID, "kind": string(kind)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum ledger sql: %w", err)
	}

	var total int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return total, nil
}

// ActiveIdentitiesSince lists identities with ledger entries created after since.
func (r *LedgerRepository) ActiveIdentitiesSince(ctx context.Context, since time.Time, limit int) ([]string, error) {
	query := r.builder.
		Select("DISTINCT identity_id").
		From("kether.ledger_entries").
		Where(squirrel.GtOrEq{"created_at": since.UTC()}).
		OrderBy("identity_id")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build active identities sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list active identities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ port.LedgerRepository = (*LedgerRepository)(nil)
