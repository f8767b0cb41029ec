package passwordresets

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

const resetColumns = "id, email, token, expires_at, is_used, created_at"

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new reset token row for the given email address.
func (r *PostgresRepository) Create(ctx context.Context, email string, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	query := `
		INSERT INTO password_resets (id, email, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	pr := &models.PasswordReset{
		ID:        uuid.NewString(),
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.db.ExecContext(ctx, query,
		pr.ID, pr.Email, pr.Token, pr.ExpiresAt, pr.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return pr, nil
}

// FindByToken returns the reset row with the given token value.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	query := fmt.Sprintf(`SELECT %s FROM password_resets WHERE token = $1`, resetColumns)

	pr := &models.PasswordReset{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&pr.ID, &pr.Email, &pr.Token,
		&pr.ExpiresAt, &pr.IsUsed, &pr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return pr, nil
}

// MarkUsed consumes the token. The affected-row count decides the outcome:
// zero means the token was missing or already consumed.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string) error {
	query := `
		UPDATE password_resets
		SET is_used = TRUE
		WHERE id = $1 AND is_used = FALSE
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
