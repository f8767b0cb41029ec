package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them as a hexadecimal string, so the final string length is twice
// the size (each byte expands to two hex characters).
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeBackupCode generates one single-use backup code: four random bytes
// hex-encoded and uppercased, yielding a fixed 8-character alphanumeric code.
func MakeBackupCode() (string, error) {
	s, err := MakeRandHexString(4)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(s), nil
}
