package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
)

// ReferralRepository implements port.ReferralRepository using PostgreSQL.
type ReferralRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewReferralRepository constructs a referral edge repository.
func NewReferralRepository(exec pgExecutor) *ReferralRepository {
	repo := &ReferralRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *ReferralRepository) WithTx(tx pgx.Tx) *ReferralRepository {
	if tx == nil {
		return r
	}
	return &ReferralRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// CreateEdges inserts the referee's upline edges.
func (r *ReferralRepository) CreateEdges(ctx context.Context, edges []domain.ReferralEdge) error {
	if len(edges) == 0 {
		return nil
	}

	query := r.builder.Insert("kether.referral_edges").
		Columns("referrer_id", "referee_id", "level", "created_at")
	for _, edge := range edges {
		query = query.Values(edge.ReferrerID, edge.RefereeID, edge.Level, edge.CreatedAt.UTC())
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert referral edges sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert referral edges: %w", mapWriteError(err))
	}
	return nil
}

// ListUpline returns the referrers above refereeID ordered by level.
func (r *ReferralRepository) ListUpline(ctx context.Context, refereeID string) ([]domain.ReferralEdge, error) {
	stmt, args, err := r.builder.
		Select("referrer_id", "referee_id", "level", "created_at").
		From("kether.referral_edges").
		Where(squirrel.Eq{"referee_id": refereeID}).
		OrderBy("level ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list upline sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list upline: %w", err)
	}
	defer rows.Close()

	var edges []domain.ReferralEdge
	for rows.Next() {
		var edge domain.ReferralEdge
		if err := rows.Scan(&edge.ReferrerID, &edge.RefereeID, &edge.Level, &edge.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral edge: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// CountDownline counts referees per level below referrerID.
func (r *ReferralRepository) CountDownline(ctx context.Context, referrerID string) (map[int]int, error) {
	stmt, args, err := r.builder.
		Select("level", "COUNT(*)").
		From("kether.referral_edges").
		Where(squirrel.Eq{"referrer_id": referrerID}).
		GroupBy("level").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count downline sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("count downline: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int, domain.MaxReferralDepth)
	for rows.Next() {
		var (
			level int
			count int64
		)
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("scan downline count: %w", err)
		}
		counts[level] = int(count)
	}
	return counts, rows.Err()
}

var _ port.ReferralRepository = (*ReferralRepository)(nil)
