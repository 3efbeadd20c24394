package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in a map. It enforces the same uniqueness and
// compare-and-swap rules as the PostgreSQL repository.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: map[string]*models.User{}, now: time.Now}
}

func clone(u *models.User) *models.User {
	c := *u
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		c.RefreshTokenHash = &h
	}
	return &c
}

// taken reports whether username or email already belongs to a user other
// than exceptID. Callers hold mu.
func (r *MemoryRepository) taken(username, email, exceptID string) bool {
	for id, u := range r.users {
		if id == exceptID {
			continue
		}
		if u.Username == username || u.Email == email {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	if r.taken(user.Username, user.Email, "") {
		return nil, common.ErrAlreadyExists
	}

	user.ID = uuid.NewString()
	user.CreatedAt = r.now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = clone(user)
	return user, nil
}

func (r *MemoryRepository) FindByUsernameOrEmail(_ context.Context, identifier string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byEmail := IsEmail(identifier)
	email := strings.ToLower(identifier)
	for _, u := range r.users {
		if (byEmail && u.Email == email) || (!byEmail && u.Username == identifier) {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) SetRefreshToken(_ context.Context, id string, digest *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	if digest == nil {
		u.RefreshTokenHash = nil
	} else {
		d := *digest
		u.RefreshTokenHash = &d
	}
	u.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) SwapRefreshToken(_ context.Context, id, oldDigest, newDigest string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldDigest {
		return false, nil
	}
	u.RefreshTokenHash = &newDigest
	u.UpdatedAt = r.now()
	return true, nil
}

func (r *MemoryRepository) ChangePassword(_ context.Context, id, oldHash, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.PasswordHash != oldHash {
		return false, nil
	}
	u.PasswordHash = newHash
	u.RefreshTokenHash = nil
	u.UpdatedAt = r.now()
	return true, nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, id string, p *models.ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}

	next := clone(u)
	p.Apply(next)
	next.Email = strings.ToLower(next.Email)
	if r.taken(next.Username, next.Email, id) {
		return nil, common.ErrAlreadyExists
	}
	next.UpdatedAt = r.now()
	r.users[id] = next
	return clone(next), nil
}

func (r *MemoryRepository) UpdateAvatar(_ context.Context, id string, avatar string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Avatar = avatar
	u.UpdatedAt = r.now()
	return clone(u), nil
}
