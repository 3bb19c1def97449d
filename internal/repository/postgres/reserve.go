package postgres

import (
	"context"
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

const reserveStateID = 1

// ReserveRepository implements port.ReserveRepository using PostgreSQL.
type ReserveRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewReserveRepository constructs a reserve repository.
func NewReserveRepository(exec pgExecutor) *ReserveRepository {
	repo := &ReserveRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *ReserveRepository) WithTx(tx pgx.Tx) *ReserveRepository {
	if tx == nil {
		return r
	}
	return &ReserveRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// LockCommitted reads the committed liability with FOR UPDATE on the singleton state row.
func (r *ReserveRepository) LockCommitted(ctx context.Context) (decimal.Decimal, error) {
	return r.readCommitted(ctx, "FOR UPDATE")
}

// CommittedLiability reads the committed liability without locking.
func (r *ReserveRepository) CommittedLiability(ctx context.Context) (decimal.Decimal, error) {
	return r.readCommitted(ctx, "")
}

func (r *ReserveRepository) readCommitted(ctx context.Context, suffix string) (decimal.Decimal, error) {
	query := r.builder.Select("committed::text").
		From("kether.reserve_state").
		Where(squirrel.Eq{"id": reserveStateID})
	if suffix != "" {
		query = query.Suffix(suffix)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build select reserve state sql: %w", err)
	}

	var raw string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&raw); err != nil {
		if isNoRows(err) {
			return decimal.Zero, repository.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("read reserve state: %w", err)
	}
	return parseNumeric(raw)
}

// AdjustCommitted adds delta (which may be negative) to the committed liability.
func (r *ReserveRepository) AdjustCommitted(ctx context.Context, delta decimal.Decimal, at time.Time) error {
	stmt, args, err := r.builder.Update("kether.reserve_state").
		Set("committed", squirrel.Expr("GREATEST(committed + ?, 0)", delta)).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": reserveStateID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build adjust committed sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("adjust committed liability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreatePayout inserts an authorized payout.
func (r *ReserveRepository) CreatePayout(ctx context.Context, payout domain.Payout) error {
	stmt, args, err := r.builder.Insert("kether.payouts").
		Columns("id", "identity_id", "amount", "status", "authorized_at", "updated_at").
		Values(
			payout.ID,
			payout.IdentityID,
			payout.Amount,
			string(payout.Status),
			payout.AuthorizedAt.UTC(),
			payout.AuthorizedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert payout sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert payout: %w", mapWriteError(err))
	}
	return nil
}

// GetPayout loads a payout by id.
func (r *ReserveRepository) GetPayout(ctx context.Context, id string) (*domain.Payout, error) {
	stmt, args, err := r.builder.
		Select("id", "identity_id", "amount::text", "status", "authorized_at").
		From("kether.payouts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select payout sql: %w", err)
	}

	payout, err := scanPayout(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan payout: %w", err)
	}
	return payout, nil
}

// TransitionPayout moves a payout between statuses when it is still in from.
func (r *ReserveRepository) TransitionPayout(ctx context.Context, id string, from, to domain.PayoutStatus) (bool, error) {
	stmt, args, err := r.builder.Update("kether.payouts").
		Set("status", string(to)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build transition payout sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("transition payout: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListPayouts lists payouts with a given status, newest first.
func (r *ReserveRepository) ListPayouts(ctx context.Context, status domain.PayoutStatus, limit int) ([]domain.Payout, error) {
	query := r.builder.
		Select("id", "identity_id", "amount::text", "status", "authorized_at").
		From("kether.payouts").
		Where(squirrel.Eq{"status": string(status)}).
		OrderBy("authorized_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list payouts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		payouts = append(payouts, *payout)
	}
	return payouts, rows.Err()
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var (
		payout domain.Payout
		amount string
		status string
	)
	if err := row.Scan(&payout.ID, &payout.IdentityID, &amount, &status, &payout.AuthorizedAt); err != nil {
		return nil, err
	}
	parsed, err := parseNumeric(amount)
	if err != nil {
		return nil, err
	}
	payout.Amount = parsed
	payout.Status = domain.PayoutStatus(status)
	return &payout, nil
}

var _ port.ReserveRepository = (*ReserveRepository)(nil)
