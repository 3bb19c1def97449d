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
	"github.com/arklim/kether-core/internal/repository"
)

var identityColumns = []string{
	"id",
	"wallet_address",
	"referral_code",
	"referred_by",
	"level",
	"total_points",
	"available_points",
	"created_at",
	"last_login_at",
}

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewIdentityRepository(exec pgExecutor) *IdentityRepository {
	repo := &IdentityRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *IdentityRepository) WithTx(tx pgx.Tx) *IdentityRepository {
	if tx == nil {
		return r
	}
	return &IdentityRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new identity row.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	level := identity.Level
	if level <= 0 {
		level = 1
	}

	stmt, args, err := r.builder.Insert("kether.identities").
		Columns(identityColumns...).
		Values(
			identity.ID,
			identity.WalletAddress,
			identity.ReferralCode,
			optionalString(identity.ReferredBy),
			level,
			identity.TotalPoints,
			identity.AvailablePoints,
			identity.CreatedAt.UTC(),
			optionalTime(identity.LastLoginAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert identity: %w", mapWriteError(err))
	}
	return nil
}

// GetByID retrieves an identity by identifier.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, "")
}

// GetByWallet retrieves an identity by canonical wallet address.
func (r *IdentityRepository) GetByWallet(ctx context.Context, wallet string) (*domain.Identity, error) {
	return r.getOne(ctx, squirrel.Eq{"wallet_address": wallet}, "")
}

// GetByReferralCode retrieves the identity owning a referral code.
func (r *IdentityRepository) GetByReferralCode(ctx context.Context, code string) (*domain.Identity, error) {
	return r.getOne(ctx, squirrel.Eq{"referral_code": code}, "")
}

// LockByID reads the identity with FOR UPDATE.
func (r *IdentityRepository) LockByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, "FOR UPDATE")
}

func (r *IdentityRepository) getOne(ctx context.Context, where squirrel.Eq, suffix string) (*domain.Identity, error) {
	query := r.builder.Select(identityColumns...).
		From("kether.identities").
		Where(where).
		Limit(1)
	if suffix != "" {
		query = query.Suffix(suffix)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	identity, err := scanIdentity(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// AddPoints increments both lifetime and available points and returns the updated row.
func (r *IdentityRepository) AddPoints(ctx context.Context, id string, amount int64) (*domain.Identity, error) {
	stmt, args, err := r.builder.Update("kether.identities").
		Set("total_points", squirrel.Expr("total_points + ?", amount)).
		Set("available_points", squirrel.Expr("available_points + ?", amount)).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING id, wallet_address, referral_code, referred_by, level, total_points, available_points, created_at, last_login_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build add points sql: %w", err)
	}

	identity, err := scanIdentity(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// DebitAvailable subtracts amount when available_points covers it.
func (r *IdentityRepository) DebitAvailable(ctx context.Context, id string, amount int64) (bool, error) {
	stmt, args, err := r.builder.Update("kether.identities").
		Set("available_points", squirrel.Expr("available_points - ?", amount)).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.GtOrEq{"available_points": amount}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build debit sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("debit available points: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateLevel stores a recomputed level.
func (r *IdentityRepository) UpdateLevel(ctx context.Context, id string, level int) error {
	stmt, args, err := r.builder.Update("kether.identities").
		Set("level", level).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update level sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	return nil
}

// TouchLogin records the last successful sign-in.
func (r *IdentityRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("kether.identities").
		Set("last_login_at", at.UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch login sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		identity   domain.Identity
		referredBy sql.NullString
		lastLogin  sql.NullTime
	)

	if err := row.Scan(
		&identity.ID,
		&identity.WalletAddress,
		&identity.ReferralCode,
		&referredBy,
		&identity.Level,
		&identity.TotalPoints,
		&identity.AvailablePoints,
		&identity.CreatedAt,
		&lastLogin,
	); err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	identity.ReferredBy = nullableStringPtr(referredBy)
	identity.LastLoginAt = nullableTimePtr(lastLogin)
	return &identity, nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
