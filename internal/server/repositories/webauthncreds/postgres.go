// Package webauthncreds provides a PostgreSQL-backed repository for WebAuthn
// second-factor credentials.
package webauthncreds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mkarpov/gatekeeper/internal/common"
	"github.com/mkarpov/gatekeeper/internal/dbx"
	"github.com/mkarpov/gatekeeper/internal/server/models"
)

const credColumns = `id, user_id, credential_id, public_key, counter, name, transports, created_at, updated_at, last_used`

const uniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new credential. A duplicate credential_id surfaces as
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, cred *models.WebAuthnCredential) (*models.WebAuthnCredential, error) {
	query := `
		INSERT INTO webauthn_credentials
			(id, user_id, credential_id, public_key, counter, name, transports, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	now := time.Now().UTC()
	id := uuid.NewString()

	if _, err := r.db.ExecContext(ctx, query,
		id, cred.UserID, cred.CredentialID, cred.PublicKey, cred.Counter,
		cred.Name, cred.Transports, now); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	cred.ID = id
	cred.CreatedAt = now
	cred.UpdatedAt = now
	return cred, nil
}

// FindByCredentialID returns the credential registered under the given
// authenticator credential id.
func (r *PostgresRepository) FindByCredentialID(ctx context.Context, credentialID string) (*models.WebAuthnCredential, error) {
	query := fmt.Sprintf(`SELECT %s FROM webauthn_credentials WHERE credential_id = $1`, credColumns)

	cred := &models.WebAuthnCredential{}
	err := r.db.QueryRowContext(ctx, query, credentialID).Scan(
		&cred.ID, &cred.UserID, &cred.CredentialID, &cred.PublicKey, &cred.Counter,
		&cred.Name, &cred.Transports, &cred.CreatedAt, &cred.UpdatedAt, &cred.LastUsed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return cred, nil
}

// FindByUserID returns every credential owned by the user, oldest first.
func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) ([]*models.WebAuthnCredential, error) {
	query := fmt.Sprintf(`SELECT %s FROM webauthn_credentials WHERE user_id = $1 ORDER BY created_at`, credColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var creds []*models.WebAuthnCredential
	for rows.Next() {
		cred := &models.WebAuthnCredential{}
		if err := rows.Scan(
			&cred.ID, &cred.UserID, &cred.CredentialID, &cred.PublicKey, &cred.Counter,
			&cred.Name, &cred.Transports, &cred.CreatedAt, &cred.UpdatedAt, &cred.LastUsed,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return creds, nil
}

// UpdateCounter persists the new sign counter and returns the updated row.
func (r *PostgresRepository) UpdateCounter(ctx context.Context, id string, counter int64) (*models.WebAuthnCredential, error) {
	query := `
		UPDATE webauthn_credentials
		SET counter = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + credColumns

	cred := &models.WebAuthnCredential{}
	err := r.db.QueryRowContext(ctx, query, id, counter, time.Now().UTC()).Scan(
		&cred.ID, &cred.UserID, &cred.CredentialID, &cred.PublicKey, &cred.Counter,
		&cred.Name, &cred.Transports, &cred.CreatedAt, &cred.UpdatedAt, &cred.LastUsed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return cred, nil
}

// UpdateLastUsed stamps the last successful verification time.
func (r *PostgresRepository) UpdateLastUsed(ctx context.Context, id string, lastUsed time.Time) error {
	query := `
		UPDATE webauthn_credentials
		SET last_used = $2, updated_at = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, lastUsed); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes a credential by row id. Deleting a missing credential is not
// an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM webauthn_credentials WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
