package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/cronboard/internal/domain"
)

// IdentityRepository stores external identity links in Postgres.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Link creates or moves the link for the provider account. A different account
// the user linked earlier for the same provider is replaced.
func (r *IdentityRepository) Link(ctx context.Context, link domain.IdentityLink) (*domain.IdentityLink, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin link identity: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_identities WHERE user_id = $1 AND provider = $2 AND provider_id <> $3`,
		link.UserID, link.Provider, link.ProviderID,
	); err != nil {
		return nil, fmt.Errorf("replace identity: %w", err)
	}

	var result domain.IdentityLink
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO user_identities (user_id, provider, provider_id, login, avatar_url)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (provider, provider_id)
		 DO UPDATE SET user_id = EXCLUDED.user_id,
		               login = EXCLUDED.login,
		               avatar_url = EXCLUDED.avatar_url,
		               linked_at = NOW()
		 RETURNING user_id, provider, provider_id, login, avatar_url, linked_at`,
		link.UserID, link.Provider, link.ProviderID, link.Login, link.AvatarURL,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("link identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit link identity: %w", err)
	}
	return &result, nil
}

// FindByUser returns the link of userID for provider.
func (r *IdentityRepository) FindByUser(ctx context.Context, userID, provider string) (*domain.IdentityLink, error) {
	var link domain.IdentityLink
	err := r.db.GetContext(ctx, &link,
		`SELECT user_id, provider, provider_id, login, avatar_url, linked_at
		 FROM user_identities WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find identity for %s/%s: %w", userID, provider, err)
	}
	return &link, nil
}

// Unlink removes the link of userID for provider.
func (r *IdentityRepository) Unlink(ctx context.Context, userID, provider string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_identities WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		return fmt.Errorf("unlink identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlink identity: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
