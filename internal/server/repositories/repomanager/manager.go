package repomanager

import (
	"context"
	"database/sql"

	"github.com/mkarpov/gatekeeper/internal/dbx"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/backupcodes"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/passwordresets"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/refreshtokens"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/users"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/webauthncreds"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	WebAuthnCredentials(db dbx.DBTX) webauthncreds.Repository
	BackupCodes(db dbx.DBTX) backupcodes.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
}
