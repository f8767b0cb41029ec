// Package users declares the repository contract for identity records.
package users

import (
	"context"
	"time"

	"github.com/mkarpov/gatekeeper/internal/server/models"
)

// Repository defines persistence operations for users. Lookups return
// common.ErrorNotFound when no row matches; Create returns
// common.ErrorAlreadyExists on a username/email/google-id collision.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)

	// Update applies the non-nil fields of upd and returns the updated row.
	Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)

	// SoftDelete stamps deleted_at on a not-yet-deleted user and returns the
	// updated row. A missing or already-deleted user yields common.ErrorNotFound.
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) (*models.User, error)
}
