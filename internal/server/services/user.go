// Package services contains server-side business logic. UserService runs the
// session lifecycle: registration, login, logout, password change, token
// refresh and access token checks.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/server/auth"
	"github.com/dmitrijs2005/leafline/internal/server/metrics"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/users"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is what a successful login hands back to the transport.
type LoginResult struct {
	Tokens TokenPair
	User   *models.PublicUser
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	Description string
	Avatar      *Image
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenIssuer
	hasher      *auth.PasswordHasher
	images      ImageStore
	metrics     *metrics.Auth
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenIssuer,
	hasher *auth.PasswordHasher, images ImageStore, mt *metrics.Auth) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		hasher:      hasher,
		images:      images,
		metrics:     mt,
	}
}

// Register creates an identity. Username and email uniqueness is left to the
// store; a collision comes back as ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	const op = "users.Register"

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, invalid(op, "username, email and password are required")
	}
	if err := checkUsername(op, username); err != nil {
		return nil, err
	}
	if err := checkEmail(op, email); err != nil {
		return nil, err
	}
	if err := checkPassword(op, in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hash(ctx, op, in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Description:  strings.TrimSpace(in.Description),
	}
	if in.Avatar != nil {
		if user.Avatar, err = putImage(ctx, op, s.images, in.Avatar); err != nil {
			return nil, err
		}
	}

	created, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, storeError(op, err)
	}
	return created.Public(), nil
}

// Login checks identifier (username or email) and password and starts a new
// session lineage: the refresh token stored before is overwritten.
// An unknown identifier and a wrong password both give ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, identifier, password string) (res *LoginResult, err error) {
	const op = "users.Login"
	defer func() { s.metrics.ObserveLogin(err) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, invalid(op, "username or email and password are required")
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, common.WrapError(op, common.ErrInfrastructure, err)
		}
		// Same bcrypt work as a real account.
		if _, verr := s.verify(ctx, op, password, s.hasher.DummyDigest()); verr != nil {
			return nil, verr
		}
		return nil, common.NewError(op, common.ErrInvalidCredentials, "")
	}

	ok, err := s.verify(ctx, op, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NewError(op, common.ErrInvalidCredentials, "")
	}

	pair, err := s.issuePair(op, user.ID)
	if err != nil {
		return nil, err
	}
	digest := auth.Digest(pair.RefreshToken)
	if err := repo.SetRefreshToken(ctx, user.ID, &digest); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(op, common.ErrInvalidCredentials, "")
		}
		return nil, common.WrapError(op, common.ErrInfrastructure, err)
	}

	return &LoginResult{Tokens: *pair, User: user.Public()}, nil
}

// Logout clears the stored refresh token. Access tokens already handed out
// stay valid until they expire. Calling it again is not an error.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	const op = "users.Logout"

	if err := s.repomanager.Users(s.db).SetRefreshToken(ctx, userID, nil); err != nil {
		return s.identityError(op, err)
	}
	return nil
}

// ChangePassword replaces the password hash when current matches. The swap
// is conditional on the hash that was verified, and it also ends the refresh
// lineage, so the caller has to log in again once the access token expires.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	const op = "users.ChangePassword"

	if current == "" || next == "" {
		return invalid(op, "old and new password are required")
	}
	if err := checkPassword(op, next); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.FindByID(ctx, userID)
	if err != nil {
		return s.identityError(op, err)
	}

	ok, err := s.verify(ctx, op, current, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewError(op, common.ErrInvalidCredentials, "")
	}

	hash, err := s.hash(ctx, op, next)
	if err != nil {
		return err
	}

	swapped, err := repo.ChangePassword(ctx, userID, user.PasswordHash, hash)
	if err != nil {
		return common.WrapError(op, common.ErrInfrastructure, err)
	}
	if !swapped {
		// The password changed under us; current is no longer the password.
		return common.NewError(op, common.ErrInvalidCredentials, "")
	}
	return nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// be the one stored for its identity; it is replaced atomically, so a
// superseded or already used token fails with ErrInvalidToken.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	const op = "users.Refresh"
	defer func() { s.metrics.ObserveRefresh(err) }()

	claims, err := s.tokens.Parse(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, s.identityError(op, err)
	}

	presented := auth.Digest(refreshToken)
	if user.RefreshTokenHash == nil || !auth.DigestEqual(*user.RefreshTokenHash, presented) {
		return nil, common.NewError(op, common.ErrInvalidToken, "refresh token superseded")
	}

	pair, err = s.issuePair(op, user.ID)
	if err != nil {
		return nil, err
	}

	swapped, err := repo.SwapRefreshToken(ctx, user.ID, presented, auth.Digest(pair.RefreshToken))
	if err != nil {
		return nil, common.WrapError(op, common.ErrInfrastructure, err)
	}
	if !swapped {
		return nil, common.NewError(op, common.ErrInvalidToken, "refresh token superseded")
	}
	return pair, nil
}

// Authenticate resolves an access token to its identity. Only signature and
// expiry decide validity; the store is read to make sure the identity still
// exists. It never writes.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (user *models.PublicUser, err error) {
	const op = "users.Authenticate"
	defer func() { s.metrics.ObserveAuthenticate(err) }()

	claims, err := s.tokens.Parse(accessToken, auth.AccessToken)
	if err != nil {
		return nil, err
	}

	u, err := s.repomanager.Users(s.db).FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, s.identityError(op, err)
	}
	return u.Public(), nil
}

func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	const op = "users.CurrentUser"

	u, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		return nil, s.identityError(op, err)
	}
	return u.Public(), nil
}

// UpdateAccount changes profile fields. Fields that are present must not be
// blank.
func (s *UserService) UpdateAccount(ctx context.Context, userID string, p *models.ProfileUpdate) (*models.PublicUser, error) {
	const op = "users.UpdateAccount"

	if p == nil {
		return nil, invalid(op, "nothing to update")
	}
	fields := p.Fields()
	if len(fields) == 0 {
		return nil, invalid(op, "nothing to update")
	}
	for name, v := range fields {
		if blank(v) {
			return nil, invalid(op, name+" must not be blank")
		}
	}

	clean := *p
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	clean.Username = trim(p.Username)
	clean.Email = trim(p.Email)
	if clean.Username != nil {
		if err := checkUsername(op, *clean.Username); err != nil {
			return nil, err
		}
	}
	if clean.Email != nil {
		lower := strings.ToLower(*clean.Email)
		clean.Email = &lower
		if err := checkEmail(op, lower); err != nil {
			return nil, err
		}
	}

	u, err := s.repomanager.Users(s.db).UpdateProfile(ctx, userID, &clean)
	if err != nil {
		return nil, s.identityError(op, err)
	}
	return u.Public(), nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID string, img *Image) (*models.PublicUser, error) {
	const op = "users.UpdateAvatar"

	loc, err := putImage(ctx, op, s.images, img)
	if err != nil {
		return nil, err
	}
	u, err := s.repomanager.Users(s.db).UpdateAvatar(ctx, userID, loc)
	if err != nil {
		return nil, s.identityError(op, err)
	}
	return u.Public(), nil
}

// --- helpers below ---

// identityError maps a store error for an already authenticated user: a
// missing row means the identity is gone.
func (s *UserService) identityError(op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.WrapError(op, common.ErrUnknownIdentity, err)
	}
	return storeError(op, err)
}

func (s *UserService) issuePair(op, userID string) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, common.WrapError(op, common.ErrInfrastructure, err)
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return nil, common.WrapError(op, common.ErrInfrastructure, err)
	}
	s.metrics.TokenIssued(string(auth.AccessToken))
	s.metrics.TokenIssued(string(auth.RefreshToken))
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// hash and verify run bcrypt on their own goroutine so a cancelled request
// does not wait for it.
func (s *UserService) hash(ctx context.Context, op, plaintext string) (string, error) {
	type result struct {
		digest string
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		d, err := s.hasher.Hash(plaintext)
		ch <- result{d, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", common.WrapError(op, common.ErrInfrastructure, r.err)
		}
		return r.digest, nil
	case <-ctx.Done():
		return "", common.WrapError(op, common.ErrInfrastructure, ctx.Err())
	}
}

func (s *UserService) verify(ctx context.Context, op, plaintext, digest string) (bool, error) {
	ch := make(chan bool, 1)
	go func() { ch <- s.hasher.Verify(plaintext, digest) }()

	select {
	case ok := <-ch:
		return ok, nil
	case <-ctx.Done():
		return false, common.WrapError(op, common.ErrInfrastructure, ctx.Err())
	}
}

func checkPassword(op, pw string) error {
	if len(pw) < minPasswordLen {
		return invalid(op, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(pw) > maxPasswordLen {
		return invalid(op, fmt.Sprintf("password must be at most %d bytes", maxPasswordLen))
	}
	return nil
}

// checkUsername keeps usernames and emails apart: login treats any
// identifier with "@" as an email.
func checkUsername(op, username string) error {
	if users.IsEmail(username) {
		return invalid(op, "username must not contain @")
	}
	return nil
}

func checkEmail(op, email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return invalid(op, "email is not valid")
	}
	return nil
}
