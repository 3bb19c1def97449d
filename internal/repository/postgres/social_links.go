package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/repository"
)

// SocialLinkRepository implements port.SocialLinkRepository using PostgreSQL.
type SocialLinkRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSocialLinkRepository constructs a social link repository.
func NewSocialLinkRepository(exec pgExecutor) *SocialLinkRepository {
	repo := &SocialLinkRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *SocialLinkRepository) WithTx(tx pgx.Tx) *SocialLinkRepository {
	if tx == nil {
		return r
	}
	return &SocialLinkRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Link binds a social account to an identity; the (platform, username) key is unique.
func (r *SocialLinkRepository) Link(ctx context.Context, link domain.SocialLink) error {
	stmt, args, err := r.builder.Insert("kether.social_links").
		Columns("identity_id", "platform", "username", "linked_at").
		Values(link.IdentityID, string(link.Platform), link.Username, link.LinkedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert social link sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert social link: %w", mapWriteError(err))
	}
	return nil
}

// GetByAccount finds the identity bound to a social account.
func (r *SocialLinkRepository) GetByAccount(ctx context.Context, platform domain.SocialPlatform, username string) (*domain.SocialLink, error) {
	stmt, args, err := r.builder.
		Select("identity_id", "platform", "username", "linked_at").
		From("kether.social_links").
		Where(squirrel.Eq{"platform": string(platform), "username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select social link sql: %w", err)
	}

	var (
		link        domain.SocialLink
		platformRaw string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&link.IdentityID, &platformRaw, &link.Username, &link.LinkedAt); err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan social link: %w", err)
	}
	link.Platform = domain.SocialPlatform(platformRaw)
	return &link, nil
}

// ListByIdentity lists the social accounts linked to an identity.
func (r *SocialLinkRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.SocialLink, error) {
	stmt, args, err := r.builder.
		Select("identity_id", "platform", "username", "linked_at").
		From("kether.social_links").
		Where(squirrel.Eq{"identity_id": identityID}).
		OrderBy("linked_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list social links sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list social links: %w", err)
	}
	defer rows.Close()

	var links []domain.SocialLink
	for rows.Next() {
		var (
			link        domain.SocialLink
			platformRaw string
		)
		if err := rows.Scan(&link.IdentityID, &platformRaw, &link.Username, &link.LinkedAt); err != nil {
			return nil, fmt.Errorf("scan social link: %w", err)
		}
		link.Platform = domain.SocialPlatform(platformRaw)
		links = append(links, link)
	}
	return links, rows.Err()
}

var _ port.SocialLinkRepository = (*SocialLinkRepository)(nil)
