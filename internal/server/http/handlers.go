package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkarpov/gatekeeper/internal/common"
	"github.com/mkarpov/gatekeeper/internal/server/models"
	"github.com/mkarpov/gatekeeper/internal/server/services"
)

// --- request / response shapes ---

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type googleSignInRequest struct {
	GoogleID    string `json:"google_id" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	LinkAccount bool   `json:"link_account"`
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type registerCredentialRequest struct {
	CredentialID string  `json:"credential_id" binding:"required"`
	PublicKey    string  `json:"public_key" binding:"required"`
	Counter      int64   `json:"counter"`
	Name         *string `json:"name"`
	Transports   *string `json:"transports"`
}

type verifyCredentialRequest struct {
	CredentialID string `json:"credential_id" binding:"required"`
	Counter      int64  `json:"counter"`
}

type verifyBackupCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type userResponse struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

func toTokenResponse(p *services.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}

// writeError maps a domain error to a stable status code. Anything not in the
// taxonomy is an internal fault and is surfaced without detail.
func (s *HTTPServer) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidRefreshToken),
		errors.Is(err, common.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrorAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrorAlreadyDeleted):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		s.logger.Error(c.Request.Context(), "internal error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// --- identity handlers ---

func (s *HTTPServer) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, pair, err := s.service.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "user registered", "username", user.Username)
	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user), "tokens": toTokenResponse(pair)})
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, pair, err := s.service.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user), "tokens": toTokenResponse(pair)})
}

func (s *HTTPServer) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	pair, err := s.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": toTokenResponse(pair)})
}

func (s *HTTPServer) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := s.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (s *HTTPServer) logoutAll(c *gin.Context) {
	if err := s.service.LogoutAll(c.Request.Context(), currentUserID(c)); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere"})
}

func (s *HTTPServer) googleSignIn(c *gin.Context) {
	var req googleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, pair, err := s.service.GoogleSignIn(c.Request.Context(), req.GoogleID, req.Email, req.LinkAccount)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user), "tokens": toTokenResponse(pair)})
}

func (s *HTTPServer) deleteAccount(c *gin.Context) {
	user, err := s.service.SoftDelete(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "account deleted", "user_id", user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

func (s *HTTPServer) requestPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := s.service.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		s.writeError(c, err)
		return
	}

	// same answer whether or not the email exists
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists, a reset link has been sent"})
}

func (s *HTTPServer) resetPassword(c *gin.Context) {
	var req passwordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := s.service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// --- second-factor handlers ---

func (s *HTTPServer) enableTwoFactor(c *gin.Context) {
	codes, err := s.service.EnableTwoFactor(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enabled": true, "backup_codes": codes})
}

func (s *HTTPServer) disableTwoFactor(c *gin.Context) {
	if err := s.service.DisableTwoFactor(c.Request.Context(), currentUserID(c)); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disabled": true})
}

func (s *HTTPServer) generateBackupCodes(c *gin.Context) {
	codes, err := s.service.GenerateBackupCodes(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"backup_codes": codes})
}

func (s *HTTPServer) registerWebAuthnCredential(c *gin.Context) {
	var req registerCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	cred, err := s.service.RegisterWebAuthnCredential(c.Request.Context(),
		currentUserID(c), req.CredentialID, req.PublicKey, req.Counter, req.Name, req.Transports)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":            cred.ID,
		"credential_id": cred.CredentialID,
		"counter":       cred.Counter,
	})
}

func (s *HTTPServer) verifyWebAuthnCredential(c *gin.Context) {
	var req verifyCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	cred, err := s.service.VerifyWebAuthnCredential(c.Request.Context(), req.CredentialID, req.Counter)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true, "credential_id": cred.CredentialID})
}

func (s *HTTPServer) verifyBackupCode(c *gin.Context) {
	var req verifyBackupCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	bc, err := s.service.VerifyBackupCode(c.Request.Context(), req.Code)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true, "code_id": bc.ID})
}
