package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
)

// RiskSignalRepository implements port.RiskSignalRepository using PostgreSQL.
type RiskSignalRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRiskSignalRepository constructs a risk signal repository.
func NewRiskSignalRepository(exec pgExecutor) *RiskSignalRepository {
	repo := &RiskSignalRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *RiskSignalRepository) WithTx(tx pgx.Tx) *RiskSignalRepository {
	if tx == nil {
		return r
	}
	return &RiskSignalRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Record appends a signal to the log.
func (r *RiskSignalRepository) Record(ctx context.Context, signal domain.RiskSignal) error {
	var emailScore any
	if signal.EmailScore != nil {
		emailScore = *signal.EmailScore
	}

	stmt, args, err := r.builder.Insert("kether.risk_signals").
		Columns("id", "identity_id", "action", "device_fingerprint", "device_score", "email_score", "ip_address", "observed_at").
		Values(
			signal.ID,
			signal.IdentityID,
			signal.Action,
			signal.DeviceFingerprint,
			signal.DeviceScore,
			emailScore,
			signal.IPAddress,
			signal.ObservedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert risk signal sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert risk signal: %w", err)
	}
	return nil
}

// CountIdentitiesByFingerprint counts distinct identities seen with a device fingerprint since a point in time.
func (r *RiskSignalRepository) CountIdentitiesByFingerprint(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	return r.countDistinct(ctx, squirrel.Eq{"device_fingerprint": fingerprint}, since)
}

// CountIdentitiesByIP counts distinct identities seen from an IP address since a point in time.
func (r *RiskSignalRepository) CountIdentitiesByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	return r.countDistinct(ctx, squirrel.Eq{"ip_address": ip}, since)
}

func (r *RiskSignalRepository) countDistinct(ctx context.Context, where squirrel.Eq, since time.Time) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(DISTINCT identity_id)").
		From("kether.risk_signals").
		Where(where).
		Where(squirrel.GtOrEq{"observed_at": since.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count risk signals sql: %w", err)
	}

	var count int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count risk signals: %w", err)
	}
	return int(count), nil
}

var _ port.RiskSignalRepository = (*RiskSignalRepository)(nil)
