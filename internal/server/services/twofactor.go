package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkarpov/gatekeeper/internal/common"
	"github.com/mkarpov/gatekeeper/internal/dbx"
	"github.com/mkarpov/gatekeeper/internal/server/models"
	"github.com/mkarpov/gatekeeper/internal/server/repositories/repomanager"
)

// TwoFactorService implements the second-factor engine: 2FA enable/disable,
// backup-code generation and verification, and WebAuthn credential
// registration and verification.
//
// WebAuthn verification here checks only the authenticator sign counter, not
// a cryptographic assertion.
type TwoFactorService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewTwoFactorService constructs a TwoFactorService over the given database
// handle and repositories.
func NewTwoFactorService(db *sql.DB, m repomanager.RepositoryManager) *TwoFactorService {
	return &TwoFactorService{db: db, repomanager: m}
}

// EnableTwoFactor turns 2FA on for the user and returns a fresh batch of
// backup codes. The codes leave the service in cleartext exactly once; any
// codes from a previous enablement are discarded.
func (s *TwoFactorService) EnableTwoFactor(ctx context.Context, userID string) ([]string, error) {
	if err := s.findLiveUser(ctx, userID); err != nil {
		return nil, err
	}

	enabled := true
	var codes []string
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).Update(ctx, userID, models.UserUpdate{TwoFactorEnabled: &enabled}); err != nil {
			return fmt.Errorf("error enabling two-factor: %w", err)
		}
		var genErr error
		codes, genErr = s.replaceBackupCodes(ctx, tx, userID)
		return genErr
	}); err != nil {
		return nil, common.ErrorInternal
	}
	return codes, nil
}

// DisableTwoFactor performs a full factor reset: the flag is cleared, the
// TOTP secret is nulled, and every WebAuthn credential and backup code owned
// by the user is deleted.
func (s *TwoFactorService) DisableTwoFactor(ctx context.Context, userID string) error {
	if err := s.findLiveUser(ctx, userID); err != nil {
		return err
	}

	disabled := false
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		upd := models.UserUpdate{TwoFactorEnabled: &disabled, SetTOTPSecretNull: true}
		if _, err := s.repomanager.Users(tx).Update(ctx, userID, upd); err != nil {
			return fmt.Errorf("error disabling two-factor: %w", err)
		}

		credRepo := s.repomanager.WebAuthnCredentials(tx)
		creds, err := credRepo.FindByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("error listing credentials: %w", err)
		}
		for _, cred := range creds {
			if err := credRepo.Delete(ctx, cred.ID); err != nil {
				return fmt.Errorf("error deleting credential: %w", err)
			}
		}

		if err := s.repomanager.BackupCodes(tx).DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("error deleting backup codes: %w", err)
		}
		return nil
	}); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// GenerateBackupCodes replaces the user's backup codes with a fresh batch.
// The replacement is wholesale, never additive.
func (s *TwoFactorService) GenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if err := s.findLiveUser(ctx, userID); err != nil {
		return nil, err
	}

	var codes []string
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var genErr error
		codes, genErr = s.replaceBackupCodes(ctx, tx, userID)
		return genErr
	}); err != nil {
		return nil, common.ErrorInternal
	}
	return codes, nil
}

// RegisterWebAuthnCredential stores a new authenticator credential for the
// user. A duplicate credential id yields common.ErrorAlreadyExists.
func (s *TwoFactorService) RegisterWebAuthnCredential(ctx context.Context, userID, credentialID, publicKey string, counter int64, name, transports *string) (*models.WebAuthnCredential, error) {
	if err := s.findLiveUser(ctx, userID); err != nil {
		return nil, err
	}

	cred, err := s.repomanager.WebAuthnCredentials(s.db).Create(ctx, &models.WebAuthnCredential{
		UserID:       userID,
		CredentialID: credentialID,
		PublicKey:    publicKey,
		Counter:      counter,
		Name:         name,
		Transports:   transports,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, common.ErrorInternal
	}
	return cred, nil
}

// VerifyWebAuthnCredential checks the presented sign counter against the
// stored one. The presented value must strictly exceed the stored value; on
// success the new counter and a last-used stamp are persisted. An unknown
// credential or a stale counter both collapse into ErrInvalidCredentials.
func (s *TwoFactorService) VerifyWebAuthnCredential(ctx context.Context, credentialID string, counter int64) (*models.WebAuthnCredential, error) {
	repo := s.repomanager.WebAuthnCredentials(s.db)

	cred, err := repo.FindByCredentialID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrorInternal
	}
	if counter <= cred.Counter {
		return nil, common.ErrInvalidCredentials
	}

	updated, err := repo.UpdateCounter(ctx, cred.ID, counter)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := repo.UpdateLastUsed(ctx, cred.ID, time.Now().UTC()); err != nil {
		return nil, common.ErrorInternal
	}
	return updated, nil
}

// VerifyBackupCode consumes a backup code. The conditional mark-used write
// guarantees a code verifies at most once even under concurrent attempts; an
// unknown or spent code yields ErrInvalidCredentials.
func (s *TwoFactorService) VerifyBackupCode(ctx context.Context, code string) (*models.BackupCode, error) {
	repo := s.repomanager.BackupCodes(s.db)

	bc, err := repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrorInternal
	}
	if bc.Used {
		return nil, common.ErrInvalidCredentials
	}

	if err := repo.MarkUsed(ctx, bc.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrorInternal
	}
	return bc, nil
}

// --- helpers below ---

// findLiveUser resolves userID to a not-deleted user or common.ErrorNotFound.
func (s *TwoFactorService) findLiveUser(ctx context.Context, userID string) error {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	if user.IsDeleted() {
		return common.ErrorNotFound
	}
	return nil
}

// replaceBackupCodes deletes the user's codes and creates a fresh batch,
// returning the cleartext values.
func (s *TwoFactorService) replaceBackupCodes(ctx context.Context, tx dbx.DBTX, userID string) ([]string, error) {
	repo := s.repomanager.BackupCodes(tx)

	if err := repo.DeleteByUserID(ctx, userID); err != nil {
		return nil, fmt.Errorf("error deleting old backup codes: %w", err)
	}

	codes := make([]string, 0, common.BackupCodeBatchSize)
	for i := 0; i < common.BackupCodeBatchSize; i++ {
		code, err := common.MakeBackupCode()
		if err != nil {
			return nil, fmt.Errorf("error generating backup code: %w", err)
		}
		if _, err := repo.Create(ctx, userID, code); err != nil {
			return nil, fmt.Errorf("error storing backup code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}
