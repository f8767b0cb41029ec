// Package services contains server-side business logic. This file implements
// IdentityService, which handles registration, password and Google sign-in,
// refresh-token rotation, logout, soft-delete and the password reset flow.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkarpov/gatekeeper/internal/common"
	"github.com/mkarpov/gatekeeper/internal/dbx"
	"github.com/mkarpov/gatekeeper/internal/logging"
	"github.com/mkarpov/gatekeeper/internal/server/auth"
	"github.com/mkarpov/gatekeeper/internal/server/config"
	"github.com/mkarpov/gatekeeper/internal/server/models"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/repomanager"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/users"
)

// TokenPair bundles a short-lived access token and a long-lived refresh
// secret. RefreshToken carries the raw secret; it leaves the service exactly
// once and only its digest is ever persisted.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IdentityService provides account and session lifecycle operations:
// - Register: create password accounts
// - Authenticate: verify credentials and mint tokens
// - Refresh: rotate refresh tokens and mint new access tokens
// - Logout / LogoutAll: revoke sessions
// - GoogleSignIn: reconcile an upstream-verified Google identity
// - SoftDelete: retire an account and revoke its sessions
// - RequestPasswordReset / ResetPassword: recovery flow
type IdentityService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	log                          logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	resetTokenValidityDuration   time.Duration
}

// NewIdentityService constructs an IdentityService using repositories and
// server config.
func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *IdentityService {
	return &IdentityService{
		db:                           db,
		repomanager:                  m,
		log:                          log,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		resetTokenValidityDuration:   cfg.ResetTokenValidityDuration,
	}
}

// Register creates a new password-backed user and issues its first token
// pair. A taken email or username yields common.ErrorAlreadyExists.
func (s *IdentityService) Register(ctx context.Context, username, email, password string) (*models.User, *TokenPair, error) {
	repo := s.repomanager.Users(s.db)

	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, common.ErrorInternal
	}
	if _, err := repo.FindByUsername(ctx, username); err == nil {
		return nil, nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, common.ErrorInternal
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	user, err := repo.Create(ctx, &models.User{
		Username: username,
		Email:    email,
		Password: &hash,
	})
	if err != nil {
		// a unique-index race can still surface the collision here
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, nil, common.ErrorAlreadyExists
		}
		return nil, nil, common.ErrorInternal
	}

	pair, err := s.generateTokenPair(ctx, user, s.db)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Authenticate verifies a login identifier and password and, on success,
// returns the user with a fresh token pair. The identifier is treated as an
// email when it contains "@" and as a username otherwise; exactly one lookup
// path is taken. Every failure mode collapses into ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, login, password string) (*models.User, *TokenPair, error) {
	repo := s.repomanager.Users(s.db)

	var user *models.User
	var err error
	if strings.Contains(login, "@") {
		user, err = repo.FindByEmail(ctx, login)
	} else {
		user, err = repo.FindByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, common.ErrorInternal
	}

	if user.IsDeleted() || user.Password == nil || !auth.CheckPassword(*user.Password, password) {
		return nil, nil, common.ErrInvalidCredentials
	}

	pair, err := s.generateTokenPair(ctx, user, s.db)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh secret for a fresh token pair, rotating the
// stored token transactionally. The presented secret is permanently invalid
// afterwards; a missing, revoked, expired or orphaned token yields
// ErrInvalidRefreshToken.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.FindByHash(ctx, auth.HashRefreshSecret(refreshToken))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, common.ErrorInternal
	}
	if token.Revoked || token.ExpiresAt.Before(time.Now()) {
		return nil, common.ErrInvalidRefreshToken
	}

	user, err := s.repomanager.Users(s.db).FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, common.ErrorInternal
	}
	if user.IsDeleted() {
		return nil, common.ErrInvalidRefreshToken
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// the conditional revoke decides the winner of a concurrent rotation
		if err := s.repomanager.RefreshTokens(tx).Revoke(ctx, token.ID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidRefreshToken
			}
			return fmt.Errorf("error revoking refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the session matching the presented refresh secret. It is
// idempotent: an unknown or already-revoked secret is not an error.
func (s *IdentityService) Logout(ctx context.Context, refreshToken string) error {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.FindByHash(ctx, auth.HashRefreshSecret(refreshToken))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.ErrorInternal
	}

	if err := repo.Revoke(ctx, token.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return common.ErrorInternal
	}
	return nil
}

// LogoutAll revokes every live session owned by the user.
func (s *IdentityService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// GoogleSignIn reconciles an upstream-verified Google identity with local
// accounts. Ordering matters: an account is looked up by googleID first, then
// by email; linking an email-matched account happens only when linkAccount is
// set, and a soft-deleted identity can never be resurrected.
func (s *IdentityService) GoogleSignIn(ctx context.Context, googleID, email string, linkAccount bool) (*models.User, *TokenPair, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByGoogleID(ctx, googleID)
	if err == nil {
		if user.IsDeleted() {
			return nil, nil, common.ErrorAlreadyExists
		}
		pair, err := s.generateTokenPair(ctx, user, s.db)
		if err != nil {
			return nil, nil, err
		}
		return user, pair, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, common.ErrorInternal
	}

	user, err = repo.FindByEmail(ctx, email)
	if err == nil {
		if user.IsDeleted() {
			return nil, nil, common.ErrorAlreadyExists
		}
		if !linkAccount {
			// the email belongs to another account; merging silently would be
			// an account takeover
			return nil, nil, common.ErrorAlreadyExists
		}
		updated, err := repo.Update(ctx, user.ID, models.UserUpdate{GoogleID: &googleID})
		if err != nil {
			return nil, nil, common.ErrorInternal
		}
		pair, err := s.generateTokenPair(ctx, updated, s.db)
		if err != nil {
			return nil, nil, err
		}
		return updated, pair, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, common.ErrorInternal
	}

	username, err := s.uniqueUsername(ctx, repo, email)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	user, err = repo.Create(ctx, &models.User{
		Username: username,
		Email:    email,
		GoogleID: &googleID,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, nil, common.ErrorAlreadyExists
		}
		return nil, nil, common.ErrorInternal
	}

	pair, err := s.generateTokenPair(ctx, user, s.db)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// SoftDelete retires the account: all refresh tokens are revoked first, then
// deleted_at is stamped, so a refresh racing the delete can never observe a
// live token on a not-yet-deleted user. Both writes share one transaction.
func (s *IdentityService) SoftDelete(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	if user.IsDeleted() {
		return nil, common.ErrorAlreadyDeleted
	}

	var deleted *models.User
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("error revoking user tokens: %w", err)
		}
		var delErr error
		deleted, delErr = s.repomanager.Users(tx).SoftDelete(ctx, userID, time.Now().UTC())
		if delErr != nil {
			if errors.Is(delErr, common.ErrorNotFound) {
				return common.ErrorAlreadyDeleted
			}
			return fmt.Errorf("error soft-deleting user: %w", delErr)
		}
		return nil
	}); err != nil {
		if errors.Is(err, common.ErrorAlreadyDeleted) {
			return nil, common.ErrorAlreadyDeleted
		}
		return nil, err
	}
	return deleted, nil
}

// RequestPasswordReset issues a reset token for the account registered under
// email. An unknown or deleted email is silently swallowed so the endpoint
// cannot be used to probe for accounts. Delivery is a log line for now.
// TODO: hand the token to a real mail sender once one exists.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repomanager.Users(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Info(ctx, "password reset requested for unknown email")
			return nil
		}
		return common.ErrorInternal
	}
	if user.IsDeleted() {
		s.log.Info(ctx, "password reset requested for deleted account")
		return nil
	}

	token, err := common.MakeRandHexString(32)
	if err != nil {
		return common.ErrorInternal
	}

	expires := time.Now().UTC().Add(s.resetTokenValidityDuration)
	if _, err := s.repomanager.PasswordResets(s.db).Create(ctx, email, token, expires); err != nil {
		return common.ErrorInternal
	}

	s.log.Info(ctx, "password reset token issued", "email", email, "token", token)
	return nil
}

// ResetPassword consumes a reset token and replaces the account password.
// Every live session is revoked along with the change. A missing, expired or
// already-used token yields ErrInvalidToken.
func (s *IdentityService) ResetPassword(ctx context.Context, token, newPassword string) error {
	reset, err := s.repomanager.PasswordResets(s.db).FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return common.ErrorInternal
	}
	if reset.IsUsed || reset.ExpiresAt.Before(time.Now()) {
		return common.ErrInvalidToken
	}

	user, err := s.repomanager.Users(s.db).FindByEmail(ctx, reset.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return common.ErrorInternal
	}
	if user.IsDeleted() {
		return common.ErrInvalidToken
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return common.ErrorInternal
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.PasswordResets(tx).MarkUsed(ctx, reset.ID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return fmt.Errorf("error consuming reset token: %w", err)
		}
		if _, err := s.repomanager.Users(tx).Update(ctx, user.ID, models.UserUpdate{Password: &hash}); err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		if err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("error revoking user tokens: %w", err)
		}
		return nil
	})
}

// --- helpers below ---

// uniqueUsername derives a username from the email local-part, appending an
// incrementing numeric suffix until no existing user claims it.
func (s *IdentityService) uniqueUsername(ctx context.Context, repo users.Repository, email string) (string, error) {
	base := strings.ToLower(strings.SplitN(email, "@", 2)[0])

	candidate := base
	for suffix := 1; ; suffix++ {
		_, err := repo.FindByUsername(ctx, candidate)
		if errors.Is(err, common.ErrorNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s.%d", base, suffix)
	}
}

func (s *IdentityService) generateTokenPair(ctx context.Context, user *models.User, db dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateAccessToken(user.ID, user.Username, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	secret, err := auth.NewRefreshSecret()
	if err != nil {
		return nil, common.ErrorInternal
	}
	repo := s.repomanager.RefreshTokens(db)
	if err := repo.Create(ctx, user.ID, auth.HashRefreshSecret(secret), s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: secret}, nil
}
