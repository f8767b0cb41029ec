package models

import "time"

// BackupCode is a single-use fallback second factor. Used flips false→true
// exactly once; a used code never verifies again.
type BackupCode struct {
	ID        string
	UserID    string
	Code      string
	Used      bool
	CreatedAt time.Time
	UsedAt    *time.Time
}
