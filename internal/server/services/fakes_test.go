package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mkarpov/gatekeeper/internal/common"
	"github.com/mkarpov/gatekeeper/internal/dbx"
	"github.com/mkarpov/gatekeeper/internal/logging"
	"github.com/mkarpov/gatekeeper/internal/server/config"
	"github.com/mkarpov/gatekeeper/internal/server/models"
	backupcodesrepo "github.com/mkarpov/gatekeeper/internal/server/repositories/backupcodes"
	passwordresetsrepo "github.com/mkarpov/gatekeeper/internal/server/repositories/passwordresets"
	refreshtokensrepo "github.com/mkarpov/gatekeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/mkarpov/gatekeeper/internal/server/repositories/users"
	webauthncredsrepo "github.com/mkarpov/gatekeeper/internal/server/repositories/webauthncreds"
)

// --- shared test helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) With(...any) logging.Logger            { return nopLogger{} }

func newTestConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		ResetTokenValidityDuration:   10 * time.Minute,
	}
}

// --- repository fakes ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error
	// createdWith records the last user passed to Create.
	createdWith *models.User

	byID    *models.User
	byIDErr error

	byEmail    *models.User
	byEmailErr error

	byUsername    *models.User
	byUsernameErr error
	// byUsernameFn, when set, overrides the canned byUsername fields.
	byUsernameFn func(username string) (*models.User, error)

	byGoogleID    *models.User
	byGoogleIDErr error

	updateOut  *models.User
	updateErr  error
	lastUpdate *models.UserUpdate

	softDeleteOut *models.User
	softDeleteErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.createdWith = u
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *u
	out.ID = "created-id"
	return &out, nil
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byID, nil
}

func (f *fakeUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.byEmailErr != nil {
		return nil, f.byEmailErr
	}
	return f.byEmail, nil
}

func (f *fakeUsersRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.byUsernameFn != nil {
		return f.byUsernameFn(username)
	}
	if f.byUsernameErr != nil {
		return nil, f.byUsernameErr
	}
	return f.byUsername, nil
}

func (f *fakeUsersRepo) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	if f.byGoogleIDErr != nil {
		return nil, f.byGoogleIDErr
	}
	return f.byGoogleID, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	f.lastUpdate = &upd
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updateOut != nil {
		return f.updateOut, nil
	}
	return &models.User{ID: id}, nil
}

func (f *fakeUsersRepo) SoftDelete(ctx context.Context, id string, deletedAt time.Time) (*models.User, error) {
	if f.softDeleteErr != nil {
		return nil, f.softDeleteErr
	}
	if f.softDeleteOut != nil {
		return f.softDeleteOut, nil
	}
	return &models.User{ID: id, DeletedAt: &deletedAt}, nil
}

type fakeRefreshRepo struct {
	createErr   error
	createCalls int

	findOut *models.RefreshToken
	findErr error

	revokeErr   error
	revokeCalls int

	revokeAllErr   error
	revokeAllCalls int
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, hashedToken string, validity time.Duration) error {
	f.createCalls++
	return f.createErr
}

func (f *fakeRefreshRepo) FindByHash(ctx context.Context, hashedToken string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Revoke(ctx context.Context, id string) error {
	f.revokeCalls++
	return f.revokeErr
}

func (f *fakeRefreshRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	f.revokeAllCalls++
	return f.revokeAllErr
}

type fakeCredsRepo struct {
	createOut *models.WebAuthnCredential
	createErr error

	byCredID    *models.WebAuthnCredential
	byCredIDErr error

	byUserID    []*models.WebAuthnCredential
	byUserIDErr error

	updateCounterOut  *models.WebAuthnCredential
	updateCounterErr  error
	lastCounter       int64
	updateLastUsedErr error
	lastUsedStamped   bool

	deleteErr   error
	deleteCalls int
}

func (f *fakeCredsRepo) Create(ctx context.Context, cred *models.WebAuthnCredential) (*models.WebAuthnCredential, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *cred
	out.ID = "cred-row-id"
	return &out, nil
}

func (f *fakeCredsRepo) FindByCredentialID(ctx context.Context, credentialID string) (*models.WebAuthnCredential, error) {
	if f.byCredIDErr != nil {
		return nil, f.byCredIDErr
	}
	return f.byCredID, nil
}

func (f *fakeCredsRepo) FindByUserID(ctx context.Context, userID string) ([]*models.WebAuthnCredential, error) {
	if f.byUserIDErr != nil {
		return nil, f.byUserIDErr
	}
	return f.byUserID, nil
}

func (f *fakeCredsRepo) UpdateCounter(ctx context.Context, id string, counter int64) (*models.WebAuthnCredential, error) {
	f.lastCounter = counter
	if f.updateCounterErr != nil {
		return nil, f.updateCounterErr
	}
	if f.updateCounterOut != nil {
		return f.updateCounterOut, nil
	}
	return &models.WebAuthnCredential{ID: id, Counter: counter}, nil
}

func (f *fakeCredsRepo) UpdateLastUsed(ctx context.Context, id string, lastUsed time.Time) error {
	f.lastUsedStamped = true
	return f.updateLastUsedErr
}

func (f *fakeCredsRepo) Delete(ctx context.Context, id string) error {
	f.deleteCalls++
	return f.deleteErr
}

type fakeCodesRepo struct {
	createErr    error
	createdCodes []string

	byCode    *models.BackupCode
	byCodeErr error

	markUsedErr   error
	markUsedCalls int

	deleteByUserErr   error
	deleteByUserCalls int
}

func (f *fakeCodesRepo) Create(ctx context.Context, userID string, code string) (*models.BackupCode, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdCodes = append(f.createdCodes, code)
	return &models.BackupCode{ID: "code-id", UserID: userID, Code: code}, nil
}

func (f *fakeCodesRepo) FindByCode(ctx context.Context, code string) (*models.BackupCode, error) {
	if f.byCodeErr != nil {
		return nil, f.byCodeErr
	}
	return f.byCode, nil
}

func (f *fakeCodesRepo) FindByUserID(ctx context.Context, userID string) ([]*models.BackupCode, error) {
	return nil, nil
}

func (f *fakeCodesRepo) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	f.markUsedCalls++
	return f.markUsedErr
}

func (f *fakeCodesRepo) DeleteByUserID(ctx context.Context, userID string) error {
	f.deleteByUserCalls++
	return f.deleteByUserErr
}

type fakeResetsRepo struct {
	createOut *models.PasswordReset
	createErr error
	created   bool

	byToken    *models.PasswordReset
	byTokenErr error

	markUsedErr error
}

func (f *fakeResetsRepo) Create(ctx context.Context, email string, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	f.created = true
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	return &models.PasswordReset{ID: "reset-id", Email: email, Token: token, ExpiresAt: expiresAt}, nil
}

func (f *fakeResetsRepo) FindByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	if f.byTokenErr != nil {
		return nil, f.byTokenErr
	}
	return f.byToken, nil
}

func (f *fakeResetsRepo) MarkUsed(ctx context.Context, id string) error {
	return f.markUsedErr
}

// fakeRepoManager satisfies repomanager.RepositoryManager with the fakes
// above. Unset repositories default to empty not-found fakes.
type fakeRepoManager struct {
	u  *fakeUsersRepo
	r  *fakeRefreshRepo
	w  *fakeCredsRepo
	b  *fakeCodesRepo
	pr *fakeResetsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository {
	if m.u == nil {
		m.u = &fakeUsersRepo{byIDErr: common.ErrorNotFound}
	}
	return m.u
}

func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	if m.r == nil {
		m.r = &fakeRefreshRepo{findErr: common.ErrorNotFound}
	}
	return m.r
}

func (m *fakeRepoManager) WebAuthnCredentials(db dbx.DBTX) webauthncredsrepo.Repository {
	if m.w == nil {
		m.w = &fakeCredsRepo{byCredIDErr: common.ErrorNotFound}
	}
	return m.w
}

func (m *fakeRepoManager) BackupCodes(db dbx.DBTX) backupcodesrepo.Repository {
	if m.b == nil {
		m.b = &fakeCodesRepo{byCodeErr: common.ErrorNotFound}
	}
	return m.b
}

func (m *fakeRepoManager) PasswordResets(db dbx.DBTX) passwordresetsrepo.Repository {
	if m.pr == nil {
		m.pr = &fakeResetsRepo{byTokenErr: common.ErrorNotFound}
	}
	return m.pr
}
