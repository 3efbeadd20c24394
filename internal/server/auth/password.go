package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher wraps bcrypt. Every Hash call picks a fresh salt, which
// bcrypt embeds in the digest.
type PasswordHasher struct {
	cost  int
	dummy string
}

func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	h := &PasswordHasher{cost: cost}

	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("dummy digest seed: %w", err)
	}
	dummy, err := h.Hash(hex.EncodeToString(seed))
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches digest. A malformed digest is
// just a mismatch.
func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// DummyDigest is a valid digest of a random secret, used to spend the same
// time on unknown identifiers as on real ones.
func (h *PasswordHasher) DummyDigest() string {
	return h.dummy
}
