// Package webauthncreds declares the repository contract for registered
// WebAuthn second-factor credentials.
package webauthncreds

import (
	"context"
	"time"

	"github.com/mkarpov/gatekeeper/internal/server/models"
)

// Repository defines persistence operations for WebAuthn credentials.
// Lookups return common.ErrorNotFound when no row matches.
type Repository interface {
	Create(ctx context.Context, cred *models.WebAuthnCredential) (*models.WebAuthnCredential, error)

	// FindByCredentialID looks a credential up by the authenticator-issued
	// credential id, not the row id.
	FindByCredentialID(ctx context.Context, credentialID string) (*models.WebAuthnCredential, error)

	FindByUserID(ctx context.Context, userID string) ([]*models.WebAuthnCredential, error)

	// UpdateCounter persists a new sign counter and returns the updated row.
	UpdateCounter(ctx context.Context, id string, counter int64) (*models.WebAuthnCredential, error)

	// UpdateLastUsed stamps the time the credential last verified.
	UpdateLastUsed(ctx context.Context, id string, lastUsed time.Time) error

	Delete(ctx context.Context, id string) error
}
