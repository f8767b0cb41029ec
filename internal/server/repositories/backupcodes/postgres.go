// Package backupcodes provides a PostgreSQL-backed repository for single-use
// backup second-factor codes.
package backupcodes

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

const codeColumns = `id, user_id, code, used, created_at, used_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one backup code for userID.
func (r *PostgresRepository) Create(ctx context.Context, userID string, code string) (*models.BackupCode, error) {
	query := `
		INSERT INTO backup_codes (id, user_id, code, created_at)
		VALUES ($1, $2, $3, $4)
	`
	now := time.Now().UTC()
	id := uuid.NewString()

	if _, err := r.db.ExecContext(ctx, query, id, userID, code, now); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &models.BackupCode{ID: id, UserID: userID, Code: code, CreatedAt: now}, nil
}

// FindByCode returns the backup code row with the given code value.
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (*models.BackupCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM backup_codes WHERE code = $1`, codeColumns)

	bc := &models.BackupCode{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&bc.ID, &bc.UserID, &bc.Code, &bc.Used, &bc.CreatedAt, &bc.UsedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return bc, nil
}

// FindByUserID returns every code owned by the user, oldest first.
func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) ([]*models.BackupCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM backup_codes WHERE user_id = $1 ORDER BY created_at`, codeColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var codes []*models.BackupCode
	for rows.Next() {
		bc := &models.BackupCode{}
		if err := rows.Scan(&bc.ID, &bc.UserID, &bc.Code, &bc.Used, &bc.CreatedAt, &bc.UsedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		codes = append(codes, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return codes, nil
}

// MarkUsed consumes an unused code. Zero affected rows means the code was
// missing or already used.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	query := `
		UPDATE backup_codes
		SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE
	`
	n, err := dbx.ExecAffected(ctx, r.db, query, id, usedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// DeleteByUserID removes all of the user's codes. Deleting for a user without
// codes is not an error.
func (r *PostgresRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM backup_codes WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
