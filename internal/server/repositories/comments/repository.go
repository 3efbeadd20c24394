package comments

import (
	"context"

	"github.com/dmitrijs2005/leafline/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	FindByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	Delete(ctx context.Context, id string) error
	DeleteByPost(ctx context.Context, postID string) (int64, error)
}
