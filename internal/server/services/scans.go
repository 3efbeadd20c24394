package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/repomanager"
)

type ScanService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      ImageStore
}

func NewScanService(db *sql.DB, m repomanager.RepositoryManager, images ImageStore) *ScanService {
	return &ScanService{db: db, repomanager: m, images: images}
}

func (s *ScanService) Add(ctx context.Context, userID, question, response string, img *Image) (*models.Scan, error) {
	const op = "scans.Add"

	if blank(question) || blank(response) {
		return nil, invalid(op, "question and response are required")
	}
	loc, err := putImage(ctx, op, s.images, img)
	if err != nil {
		return nil, err
	}

	sc, err := s.repomanager.Scans(s.db).Create(ctx, &models.Scan{
		UserID:   userID,
		Question: strings.TrimSpace(question),
		Response: strings.TrimSpace(response),
		Image:    loc,
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return sc, nil
}

func (s *ScanService) ListOwn(ctx context.Context, userID string) ([]*models.Scan, error) {
	const op = "scans.ListOwn"

	list, err := s.repomanager.Scans(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if list == nil {
		list = []*models.Scan{}
	}
	return list, nil
}

func (s *ScanService) Delete(ctx context.Context, userID, scanID string) error {
	const op = "scans.Delete"

	if err := checkID(op, scanID); err != nil {
		return err
	}
	repo := s.repomanager.Scans(s.db)
	sc, err := repo.FindByID(ctx, scanID)
	if err != nil {
		return storeError(op, err)
	}
	if sc.UserID != userID {
		return common.NewError(op, common.ErrForbidden, "not the owner")
	}
	if err := repo.Delete(ctx, scanID); err != nil {
		return storeError(op, err)
	}
	return nil
}
