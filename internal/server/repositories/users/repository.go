package users

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/leafline/internal/server/models"
)

// Repository is the credential store. Refresh tokens are held as digests
// only; callers hash before storing or comparing.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// FindByUsernameOrEmail looks identifier up as an email when IsEmail
	// reports true, as a username otherwise.
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)

	// SetRefreshToken overwrites the stored refresh token digest. A nil
	// digest clears it.
	SetRefreshToken(ctx context.Context, id string, digest *string) error
	// SwapRefreshToken replaces oldDigest with newDigest only if oldDigest is
	// still the stored value. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, id, oldDigest, newDigest string) (bool, error)
	// ChangePassword replaces oldHash with newHash only if oldHash is still
	// the stored value, and clears the refresh token in the same write.
	ChangePassword(ctx context.Context, id, oldHash, newHash string) (bool, error)

	UpdateProfile(ctx context.Context, id string, p *models.ProfileUpdate) (*models.User, error)
	UpdateAvatar(ctx context.Context, id string, avatar string) (*models.User, error)
}

// IsEmail reports whether a login identifier is an email address. Usernames
// never contain "@".
func IsEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}
