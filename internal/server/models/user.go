// Package models holds the server-side domain entities persisted by the
// repositories.
package models

import "time"

// User is the root identity record. Password is nil for Google-only accounts
// and GoogleID is nil for password-only accounts; a non-deleted user always
// has at least one of the two set. A non-nil DeletedAt means the account is
// soft-deleted and must never authenticate.
type User struct {
	ID               string
	Username         string
	Email            string
	Password         *string
	GoogleID         *string
	TwoFactorEnabled bool
	TOTPSecret       *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// IsDeleted reports whether the account has been soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// UserUpdate carries the partial fields of a user update. Nil fields are left
// untouched; SetTOTPSecretNull clears TOTPSecret explicitly, since a nil
// pointer alone cannot distinguish "leave as is" from "set to null".
type UserUpdate struct {
	Password          *string
	GoogleID          *string
	TwoFactorEnabled  *bool
	TOTPSecret        *string
	SetTOTPSecretNull bool
}
