package models

import "time"

// WebAuthnCredential is a registered second-factor authenticator. Counter is
// the monotonic anti-replay sign counter reported by the authenticator; a
// verification presenting a counter not strictly greater than the stored one
// is rejected. Transports, when present, is a JSON-encoded string list.
type WebAuthnCredential struct {
	ID           string
	UserID       string
	CredentialID string
	PublicKey    string
	Counter      int64
	Name         *string
	Transports   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastUsed     *time.Time
}
