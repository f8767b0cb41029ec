// Package users provides a PostgreSQL-backed repository for identity records.
package users

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

const userColumns = `id, username, email, password, google_id, two_factor_enabled, totp_secret, created_at, updated_at, deleted_at`

// uniqueViolation is the postgres error code for a unique constraint breach.
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

// Create inserts a new user. Unique-index collisions on username, email or
// google_id surface as common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, username, email, password, google_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	now := time.Now().UTC()
	id := uuid.NewString()

	if _, err := r.db.ExecContext(ctx, query,
		id, user.Username, user.Email, user.Password, user.GoogleID, now); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

// FindByID returns the user row for the given id, including soft-deleted rows.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findBy(ctx, "id", id)
}

// FindByEmail returns the user row for the given email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(ctx, "email", email)
}

// FindByUsername returns the user row for the given username.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findBy(ctx, "username", username)
}

// FindByGoogleID returns the user row linked to the given Google identity.
func (r *PostgresRepository) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.findBy(ctx, "google_id", googleID)
}

func (r *PostgresRepository) findBy(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column)

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.GoogleID,
		&user.TwoFactorEnabled, &user.TOTPSecret,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// Update applies the non-nil fields of upd and returns the updated row.
// totp_secret is cleared when SetTOTPSecretNull is set, regardless of the
// TOTPSecret pointer.
func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	query := `
		UPDATE users
		SET password = COALESCE($2, password),
		    google_id = COALESCE($3, google_id),
		    two_factor_enabled = COALESCE($4, two_factor_enabled),
		    totp_secret = CASE WHEN $5 THEN NULL ELSE COALESCE($6, totp_secret) END,
		    updated_at = $7
		WHERE id = $1
		RETURNING ` + userColumns

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query,
		id, upd.Password, upd.GoogleID, upd.TwoFactorEnabled,
		upd.SetTOTPSecretNull, upd.TOTPSecret, time.Now().UTC(),
	).Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.GoogleID,
		&user.TwoFactorEnabled, &user.TOTPSecret,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// SoftDelete stamps deleted_at on a live user row and returns it. The guard
// on deleted_at makes the write a no-op for already-deleted rows, which then
// surface as common.ErrorNotFound.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userColumns

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id, deletedAt).Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.GoogleID,
		&user.TwoFactorEnabled, &user.TOTPSecret,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
