package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mkarpov/gatekeeper/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// refreshSecretBytes is the entropy of an opaque refresh-token secret.
// Hex-encoded it yields a 64-character string.
const refreshSecretBytes = 32

// HashPassword returns the bcrypt hash of a cleartext password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword reports whether the cleartext password matches the stored
// bcrypt hash. The comparison is constant-time inside bcrypt.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewRefreshSecret generates a fresh opaque refresh-token secret.
func NewRefreshSecret() (string, error) {
	return common.MakeRandHexString(refreshSecretBytes)
}

// HashRefreshSecret returns the hex SHA-256 digest under which a refresh
// secret is stored and looked up. The digest is deterministic so lookups can
// go straight to the indexed column; the secret itself never reaches the
// database.
func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
