package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Digest is the stored form of a refresh token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DigestEqual compares two digests in constant time.
func DigestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
