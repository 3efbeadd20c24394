package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/leafline/internal/server/repositories/repomanager"
)

type LikeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewLikeService(db *sql.DB, m repomanager.RepositoryManager) *LikeService {
	return &LikeService{db: db, repomanager: m}
}

// LikeState is the outcome of a toggle.
type LikeState struct {
	PostID string `json:"postId"`
	Liked  bool   `json:"liked"`
	Likes  int64  `json:"likes"`
}

func (s *LikeService) Toggle(ctx context.Context, userID, postID string) (*LikeState, error) {
	const op = "likes.Toggle"

	if err := checkID(op, postID); err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Posts(s.db).FindByID(ctx, postID); err != nil {
		return nil, storeError(op, err)
	}

	repo := s.repomanager.Likes(s.db)
	liked, err := repo.Toggle(ctx, postID, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	n, err := repo.CountByPost(ctx, postID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return &LikeState{PostID: postID, Liked: liked, Likes: n}, nil
}

// LikedPostIDs lists the posts userID likes, newest like first.
func (s *LikeService) LikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	const op = "likes.LikedPostIDs"

	ids, err := s.repomanager.Likes(s.db).ListLikedPostIDs(ctx, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
