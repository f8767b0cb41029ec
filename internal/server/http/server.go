// Package http exposes the service facade over HTTP using gin. It owns route
// registration, request/response shapes, bearer-token auth and the mapping
// from domain errors to status codes.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkarpov/gatekeeper/internal/logging"
	"github.com/mkarpov/gatekeeper/internal/server/services"
)

// HTTPServer serves the public API.
type HTTPServer struct {
	address   string
	service   *services.Service
	logger    logging.Logger
	jwtSecret []byte
}

// NewHTTPServer constructs the server; nothing listens until Run.
func NewHTTPServer(address string, l logging.Logger, svc *services.Service, secretKey string) *HTTPServer {
	return &HTTPServer{
		address:   address,
		service:   svc,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
	}
}

// Router builds the gin engine with all routes registered.
func (s *HTTPServer) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ping", s.ping)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)
	authGroup.POST("/refresh", s.refresh)
	authGroup.POST("/logout", s.logout)
	authGroup.POST("/google", s.googleSignIn)
	authGroup.POST("/password-reset/request", s.requestPasswordReset)
	authGroup.POST("/password-reset/confirm", s.resetPassword)

	protected := api.Group("")
	protected.Use(s.requireAccessToken())
	protected.POST("/auth/logout-all", s.logoutAll)
	protected.DELETE("/auth/account", s.deleteAccount)
	protected.POST("/2fa/enable", s.enableTwoFactor)
	protected.POST("/2fa/disable", s.disableTwoFactor)
	protected.POST("/2fa/backup-codes", s.generateBackupCodes)
	protected.POST("/2fa/webauthn/credentials", s.registerWebAuthnCredential)

	// second-factor verification happens before a session exists
	api.POST("/2fa/webauthn/verify", s.verifyWebAuthnCredential)
	api.POST("/2fa/backup-codes/verify", s.verifyBackupCode)

	return r
}

// Run starts the listener and blocks until ctx is cancelled, then shuts the
// server down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
