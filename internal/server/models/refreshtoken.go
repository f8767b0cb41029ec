package models

import "time"

// RefreshToken is a single-use session credential. Only the SHA-256 digest of
// the opaque secret is stored; the raw secret is handed to the caller once at
// issuance and never persisted.
type RefreshToken struct {
	ID          string
	UserID      string
	HashedToken string
	Revoked     bool
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
