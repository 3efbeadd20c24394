package scans

import (
	"context"

	"github.com/dmitrijs2005/leafline/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Scan) (*models.Scan, error)
	FindByID(ctx context.Context, id string) (*models.Scan, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Scan, error)
	Delete(ctx context.Context, id string) error
}
