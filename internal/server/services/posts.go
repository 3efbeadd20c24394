package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/dbx"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/posts"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/repomanager"
)

// PostService manages posts. Every mutation is limited to the post's owner.
type PostService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      ImageStore
}

func NewPostService(db *sql.DB, m repomanager.RepositoryManager, images ImageStore) *PostService {
	return &PostService{db: db, repomanager: m, images: images}
}

func (s *PostService) Create(ctx context.Context, userID, title, description string, img *Image) (*models.Post, error) {
	const op = "posts.Create"

	if blank(title) || blank(description) {
		return nil, invalid(op, "title and description are required")
	}
	loc, err := putImage(ctx, op, s.images, img)
	if err != nil {
		return nil, err
	}

	p, err := s.repomanager.Posts(s.db).Create(ctx, &models.Post{
		UserID:      userID,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Image:       loc,
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return p, nil
}

func (s *PostService) ListOwn(ctx context.Context, userID string) ([]*models.Post, error) {
	const op = "posts.ListOwn"

	list, err := s.repomanager.Posts(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if list == nil {
		list = []*models.Post{}
	}
	return list, nil
}

func (s *PostService) EditDetails(ctx context.Context, userID, postID, title, description string) (*models.Post, error) {
	const op = "posts.EditDetails"

	if blank(title) || blank(description) {
		return nil, invalid(op, "title and description are required")
	}
	repo := s.repomanager.Posts(s.db)
	if _, err := owned(ctx, op, repo, userID, postID); err != nil {
		return nil, err
	}

	p, err := repo.UpdateDetails(ctx, postID, strings.TrimSpace(title), strings.TrimSpace(description))
	if err != nil {
		return nil, storeError(op, err)
	}
	return p, nil
}

func (s *PostService) EditImage(ctx context.Context, userID, postID string, img *Image) (*models.Post, error) {
	const op = "posts.EditImage"

	repo := s.repomanager.Posts(s.db)
	if _, err := owned(ctx, op, repo, userID, postID); err != nil {
		return nil, err
	}
	loc, err := putImage(ctx, op, s.images, img)
	if err != nil {
		return nil, err
	}

	p, err := repo.UpdateImage(ctx, postID, loc)
	if err != nil {
		return nil, storeError(op, err)
	}
	return p, nil
}

// Delete removes the post together with its comments and likes.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	const op = "posts.Delete"

	if _, err := owned(ctx, op, s.repomanager.Posts(s.db), userID, postID); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Comments(tx).DeleteByPost(ctx, postID); err != nil {
			return err
		}
		if _, err := s.repomanager.Likes(tx).DeleteByPost(ctx, postID); err != nil {
			return err
		}
		return s.repomanager.Posts(tx).Delete(ctx, postID)
	})
	if err != nil {
		return storeError(op, err)
	}
	return nil
}

// owned loads postID and checks that userID created it.
func owned(ctx context.Context, op string, repo posts.Repository, userID, postID string) (*models.Post, error) {
	if err := checkID(op, postID); err != nil {
		return nil, err
	}
	p, err := repo.FindByID(ctx, postID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if p.UserID != userID {
		return nil, common.NewError(op, common.ErrForbidden, "not the owner")
	}
	return p, nil
}
