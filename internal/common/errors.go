// Package common defines shared constants and sentinel errors used across
// gatekeeper layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Authentication errors. Deliberately a single undifferentiated value for
	// bad password, unknown login, deleted account, used backup code and
	// stale WebAuthn counter, so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Refresh-token lifecycle errors: missing, revoked, expired or orphaned
	// tokens all collapse into this one value.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Access-token errors (malformed token or failed signature/expiry check).
	ErrInvalidToken = errors.New("invalid token")

	// Registration collisions and identity-linking conflicts.
	ErrorAlreadyExists = errors.New("already exists")

	// Soft-delete of an already deleted account.
	ErrorAlreadyDeleted = errors.New("already deleted")
)
