package posts

import (
	"context"

	"github.com/dmitrijs2005/leafline/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	FindByID(ctx context.Context, id string) (*models.Post, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Post, error)
	UpdateDetails(ctx context.Context, id, title, description string) (*models.Post, error)
	UpdateImage(ctx context.Context, id, image string) (*models.Post, error)
	Delete(ctx context.Context, id string) error
}
