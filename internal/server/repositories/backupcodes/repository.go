// Package backupcodes declares the repository contract for single-use backup
// second-factor codes.
package backupcodes

import (
	"context"
	"time"

	"github.com/mkarpov/gatekeeper/internal/server/models"
)

// Repository defines persistence operations for backup codes. Lookups return
// common.ErrorNotFound when no row matches.
type Repository interface {
	Create(ctx context.Context, userID string, code string) (*models.BackupCode, error)
	FindByCode(ctx context.Context, code string) (*models.BackupCode, error)
	FindByUserID(ctx context.Context, userID string) ([]*models.BackupCode, error)

	// MarkUsed flips used on an unused code. The write is conditional on
	// used = FALSE; marking a code that is missing or already used returns
	// common.ErrorNotFound, so a code can be consumed at most once even
	// under concurrent verification attempts.
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error

	// DeleteByUserID removes every code owned by the user.
	DeleteByUserID(ctx context.Context, userID string) error
}
