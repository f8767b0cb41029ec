package services

import (
	"database/sql"

	"github.com/mkarpov/gatekeeper/internal/logging"
	"github.com/mkarpov/gatekeeper/internal/server/config"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/repomanager"
)

// Service is the facade the transport layer talks to. It composes the
// identity and second-factor engines; their methods are promoted, so a
// handler needs exactly one dependency.
type Service struct {
	*IdentityService
	*TwoFactorService
}

// NewService wires both engines over a shared database handle and repository
// manager.
func NewService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *Service {
	return &Service{
		IdentityService:  NewIdentityService(db, m, cfg, log),
		TwoFactorService: NewTwoFactorService(db, m),
	}
}
