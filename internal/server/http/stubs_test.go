package http

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/mkarpov/gatekeeper/internal/common"
	"github.com/mkarpov/gatekeeper/internal/dbx"
	"github.com/mkarpov/gatekeeper/internal/logging"
	"github.com/mkarpov/gatekeeper/internal/server/config"
	"github.com/mkarpov/gatekeeper/internal/server/models"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/backupcodes"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/passwordresets"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/refreshtokens"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/users"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/webauthncreds"
	"github.com/mkarpov/gatekeeper/internal/server/services"
)

// Stub repositories with canned outputs, enough to drive the handlers through
// a real service facade.

type stubUsersRepo struct {
	byID          *models.User
	byIDErr       error
	byEmail       *models.User
	byEmailErr    error
	byUsername    *models.User
	byUsernameErr error
	byGoogleID    *models.User
	byGoogleIDErr error
	createErr     error
	updateErr     error
	softDeleteErr error
}

func (s *stubUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	out := *u
	out.ID = "new-user"
	return &out, nil
}

func (s *stubUsersRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.byID, s.byIDErr
}

func (s *stubUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.byEmail, s.byEmailErr
}

func (s *stubUsersRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.byUsername, s.byUsernameErr
}

func (s *stubUsersRepo) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.byGoogleID, s.byGoogleIDErr
}

func (s *stubUsersRepo) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &models.User{ID: id}, nil
}

func (s *stubUsersRepo) SoftDelete(ctx context.Context, id string, deletedAt time.Time) (*models.User, error) {
	if s.softDeleteErr != nil {
		return nil, s.softDeleteErr
	}
	return &models.User{ID: id, DeletedAt: &deletedAt}, nil
}

type stubRefreshRepo struct {
	findOut *models.RefreshToken
	findErr error
}

func (s *stubRefreshRepo) Create(ctx context.Context, userID, hashedToken string, validity time.Duration) error {
	return nil
}

func (s *stubRefreshRepo) FindByHash(ctx context.Context, hashedToken string) (*models.RefreshToken, error) {
	return s.findOut, s.findErr
}

func (s *stubRefreshRepo) Revoke(ctx context.Context, id string) error { return nil }

func (s *stubRefreshRepo) RevokeAllForUser(ctx context.Context, userID string) error { return nil }

type stubCredsRepo struct {
	byCredID    *models.WebAuthnCredential
	byCredIDErr error
	createErr   error
}

func (s *stubCredsRepo) Create(ctx context.Context, cred *models.WebAuthnCredential) (*models.WebAuthnCredential, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	out := *cred
	out.ID = "cred-row"
	return &out, nil
}

func (s *stubCredsRepo) FindByCredentialID(ctx context.Context, credentialID string) (*models.WebAuthnCredential, error) {
	return s.byCredID, s.byCredIDErr
}

func (s *stubCredsRepo) FindByUserID(ctx context.Context, userID string) ([]*models.WebAuthnCredential, error) {
	return nil, nil
}

func (s *stubCredsRepo) UpdateCounter(ctx context.Context, id string, counter int64) (*models.WebAuthnCredential, error) {
	return &models.WebAuthnCredential{ID: id, Counter: counter}, nil
}

func (s *stubCredsRepo) UpdateLastUsed(ctx context.Context, id string, lastUsed time.Time) error {
	return nil
}

func (s *stubCredsRepo) Delete(ctx context.Context, id string) error { return nil }

type stubCodesRepo struct {
	byCode    *models.BackupCode
	byCodeErr error
}

func (s *stubCodesRepo) Create(ctx context.Context, userID, code string) (*models.BackupCode, error) {
	return &models.BackupCode{ID: "code-row", UserID: userID, Code: code}, nil
}

func (s *stubCodesRepo) FindByCode(ctx context.Context, code string) (*models.BackupCode, error) {
	return s.byCode, s.byCodeErr
}

func (s *stubCodesRepo) FindByUserID(ctx context.Context, userID string) ([]*models.BackupCode, error) {
	return nil, nil
}

func (s *stubCodesRepo) MarkUsed(ctx context.Context, id string, usedAt time.Time) error { return nil }

func (s *stubCodesRepo) DeleteByUserID(ctx context.Context, userID string) error { return nil }

type stubResetsRepo struct {
	byToken    *models.PasswordReset
	byTokenErr error
}

func (s *stubResetsRepo) Create(ctx context.Context, email, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	return &models.PasswordReset{ID: "reset-row", Email: email, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *stubResetsRepo) FindByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	return s.byToken, s.byTokenErr
}

func (s *stubResetsRepo) MarkUsed(ctx context.Context, id string) error { return nil }

type stubRepoManager struct {
	u  *stubUsersRepo
	r  *stubRefreshRepo
	w  *stubCredsRepo
	b  *stubCodesRepo
	pr *stubResetsRepo
}

func (m *stubRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *stubRepoManager) Users(db dbx.DBTX) users.Repository {
	if m.u == nil {
		m.u = &stubUsersRepo{byIDErr: common.ErrorNotFound, byEmailErr: common.ErrorNotFound,
			byUsernameErr: common.ErrorNotFound, byGoogleIDErr: common.ErrorNotFound}
	}
	return m.u
}

func (m *stubRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	if m.r == nil {
		m.r = &stubRefreshRepo{findErr: common.ErrorNotFound}
	}
	return m.r
}

func (m *stubRepoManager) WebAuthnCredentials(db dbx.DBTX) webauthncreds.Repository {
	if m.w == nil {
		m.w = &stubCredsRepo{byCredIDErr: common.ErrorNotFound}
	}
	return m.w
}

func (m *stubRepoManager) BackupCodes(db dbx.DBTX) backupcodes.Repository {
	if m.b == nil {
		m.b = &stubCodesRepo{byCodeErr: common.ErrorNotFound}
	}
	return m.b
}

func (m *stubRepoManager) PasswordResets(db dbx.DBTX) passwordresets.Repository {
	if m.pr == nil {
		m.pr = &stubResetsRepo{byTokenErr: common.ErrorNotFound}
	}
	return m.pr
}

// --- harness ---

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) With(...any) logging.Logger            { return nopLogger{} }

const testSecret = "test-secret"

// newTestServer wires a real service facade over stub repositories and a
// sqlmock database, returning the router ready to serve httptest requests.
func newTestServer(t *testing.T, rm *stubRepoManager) (*gin.Engine, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}

	cfg := &config.Config{
		SecretKey:                    testSecret,
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		ResetTokenValidityDuration:   10 * time.Minute,
	}
	svc := services.NewService(db, rm, cfg, nopLogger{})
	srv := NewHTTPServer(":0", nopLogger{}, svc, cfg.SecretKey)

	return srv.Router(), mock, func() { db.Close() }
}
