// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/mkarpov/gatekeeper/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh
// tokens.
type Repository interface {
	// Create stores a new refresh token under its digest with an expiry of
	// now+validity.
	Create(ctx context.Context, userID string, hashedToken string, validity time.Duration) error

	// FindByHash looks up a refresh token by the digest of its opaque secret.
	// Returns common.ErrorNotFound when the digest is absent.
	FindByHash(ctx context.Context, hashedToken string) (*models.RefreshToken, error)

	// Revoke flips revoked on a single not-yet-revoked token. The write is
	// conditional: revoking a token that is missing or already revoked
	// returns common.ErrorNotFound, which lets concurrent rotations of the
	// same secret resolve to exactly one winner.
	Revoke(ctx context.Context, id string) error

	// RevokeAllForUser revokes every live token owned by the user.
	RevokeAllForUser(ctx context.Context, userID string) error
}
