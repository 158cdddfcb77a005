// Package crypto implements random token generation, key derivation and sealing of stored secrets.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// RandHex returns n random bytes hex-encoded (2n characters).
func RandHex(n int) (string, error) {
	b, err := RandBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
