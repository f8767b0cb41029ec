package models

import "time"

// PasswordReset is the ephemeral token backing the password-recovery flow.
type PasswordReset struct {
	ID        string
	Email     string
	Token     string
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}
