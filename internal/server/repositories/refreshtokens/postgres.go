// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh tokens used in the authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkarpov/gatekeeper/internal/common"
	"github.com/mkarpov/gatekeeper/internal/dbx"
	"github.com/mkarpov/gatekeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new refresh token row for userID with an expiry time of
// now+validity.
func (r *PostgresRepository) Create(ctx context.Context, userID string, hashedToken string, validity time.Duration) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, hashed_token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), userID, hashedToken, now.Add(validity), now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByHash returns the refresh token row for the given secret digest.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FindByHash(ctx context.Context, hashedToken string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, hashed_token, revoked, expires_at, created_at
		FROM refresh_tokens
		WHERE hashed_token = $1
	`
	token := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, hashedToken).Scan(
		&token.ID, &token.UserID, &token.HashedToken,
		&token.Revoked, &token.ExpiresAt, &token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// Revoke flips the revoked flag on a live token. The affected-row count
// decides the outcome: zero means the token was missing or already revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE id = $1 AND revoked = FALSE
	`
	n, err := dbx.ExecAffected(ctx, r.db, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// RevokeAllForUser revokes every live token owned by userID. Revoking a user
// with no live tokens is not an error.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND revoked = FALSE
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
