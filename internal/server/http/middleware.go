package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mkarpov/gatekeeper/internal/common"
	"github.com/mkarpov/gatekeeper/internal/server/auth"
)

// userIDKey is the gin context key under which the authenticated user id is
// stored by requireAccessToken.
const userIDKey = "userID"

// requireAccessToken verifies the bearer access token and stores the subject
// claim in the request context. Any verification failure yields 401 with no
// detail about the cause.
func (s *HTTPServer) requireAccessToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := auth.ParseAccessToken(token, s.jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Next()
	}
}

// currentUserID returns the user id stored by requireAccessToken.
func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
