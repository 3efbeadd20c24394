// Package auth issues and verifies signed tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind tells access tokens from refresh tokens. A token of one kind is
// never accepted where the other is expected.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// TokenConfig is built once at startup and handed to NewTokenIssuer.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims are the registered JWT claims plus the token kind. Subject holds
// the user id.
type Claims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"typ"`
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	c := *i
	c.now = now
	return &c
}

func (i *TokenIssuer) IssueAccess(userID string) (string, error) {
	return i.issue(userID, AccessToken, i.cfg.AccessTTL)
}

func (i *TokenIssuer) IssueRefresh(userID string) (string, error) {
	return i.issue(userID, RefreshToken, i.cfg.RefreshTTL)
}

func (i *TokenIssuer) issue(userID string, kind TokenKind, ttl time.Duration) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	})

	s, err := token.SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return s, nil
}

// Parse verifies raw and returns its claims. The checks run in order and the
// first failure decides the error kind: empty token (ErrUnauthenticated),
// bad signature or malformed token (ErrInvalidToken), expired
// (ErrTokenExpired), wrong kind or issuer (ErrInvalidToken).
func (i *TokenIssuer) Parse(raw string, kind TokenKind) (*Claims, error) {
	const op = "auth.Parse"

	if raw == "" {
		return nil, common.NewError(op, common.ErrUnauthenticated, "no token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.WrapError(op, common.ErrTokenExpired, err)
		}
		return nil, common.WrapError(op, common.ErrInvalidToken, err)
	}

	if claims.Kind != kind {
		return nil, common.NewError(op, common.ErrInvalidToken, fmt.Sprintf("want %s token", kind))
	}
	if claims.Subject == "" {
		return nil, common.NewError(op, common.ErrInvalidToken, "no subject")
	}
	return claims, nil
}
