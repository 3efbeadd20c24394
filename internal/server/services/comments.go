package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/repomanager"
)

type CommentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewCommentService(db *sql.DB, m repomanager.RepositoryManager) *CommentService {
	return &CommentService{db: db, repomanager: m}
}

func (s *CommentService) Add(ctx context.Context, userID, postID, content string) (*models.Comment, error) {
	const op = "comments.Add"

	if blank(content) {
		return nil, invalid(op, "content is required")
	}
	if err := checkID(op, postID); err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Posts(s.db).FindByID(ctx, postID); err != nil {
		return nil, storeError(op, err)
	}

	c, err := s.repomanager.Comments(s.db).Create(ctx, &models.Comment{
		PostID:  postID,
		UserID:  userID,
		Content: strings.TrimSpace(content),
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return c, nil
}

func (s *CommentService) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	const op = "comments.ListByPost"

	if err := checkID(op, postID); err != nil {
		return nil, err
	}
	list, err := s.repomanager.Comments(s.db).ListByPost(ctx, postID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if list == nil {
		list = []*models.Comment{}
	}
	return list, nil
}

// Delete removes a comment written by userID.
func (s *CommentService) Delete(ctx context.Context, userID, commentID string) error {
	const op = "comments.Delete"

	if err := checkID(op, commentID); err != nil {
		return err
	}
	repo := s.repomanager.Comments(s.db)
	c, err := repo.FindByID(ctx, commentID)
	if err != nil {
		return storeError(op, err)
	}
	if c.UserID != userID {
		return common.NewError(op, common.ErrForbidden, "not the author")
	}
	if err := repo.Delete(ctx, commentID); err != nil {
		return storeError(op, err)
	}
	return nil
}
