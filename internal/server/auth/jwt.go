// Package auth implements token signing and credential hashing for the
// server: short-lived HS256 access tokens, opaque refresh-token secrets with
// their storage digest, and bcrypt password hashing.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mkarpov/gatekeeper/internal/common"
)

// TokenTypeAccess discriminates signed access tokens from any other signed
// token the service may mint later.
const TokenTypeAccess = "access"

// Claims carried by an access token: the registered claims (subject, expiry,
// issued-at) plus the username and a token type discriminator.
type Claims struct {
	jwt.RegisteredClaims
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
}

// GenerateAccessToken signs a short-lived HS256 access token for the user.
func GenerateAccessToken(userID, username string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Username:  username,
		TokenType: TokenTypeAccess,
	})

	return token.SignedString(secretKey)
}

// ParseAccessToken verifies the signature, expiry and token type of an access
// token and returns its claims. Any failure maps to common.ErrInvalidToken;
// the caller gets no detail about why verification failed.
func ParseAccessToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.TokenType != TokenTypeAccess {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
