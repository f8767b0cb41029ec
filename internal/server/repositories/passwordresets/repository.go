// Package passwordresets persists short-lived password reset tokens.
package passwordresets

import (
	"context"
	"time"

	"github.com/mkarpov/gatekeeper/internal/server/models"
)

// Repository stores password reset tokens. Tokens are single use: once
// consumed via MarkUsed they can no longer be redeemed.
type Repository interface {
	// Create stores a new reset token for the given email address.
	Create(ctx context.Context, email string, token string, expiresAt time.Time) (*models.PasswordReset, error)
	// FindByToken returns the reset row with the given token value.
	FindByToken(ctx context.Context, token string) (*models.PasswordReset, error)
	// MarkUsed consumes the token. Returns common.ErrorNotFound if the
	// token does not exist or was already consumed.
	MarkUsed(ctx context.Context, id string) error
}
