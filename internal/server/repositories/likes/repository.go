package likes

import "context"

type Repository interface {
	// Toggle likes postID for userID, or removes the like if it is already
	// there. It reports whether the post is liked afterwards.
	Toggle(ctx context.Context, postID, userID string) (bool, error)
	ListLikedPostIDs(ctx context.Context, userID string) ([]string, error)
	CountByPost(ctx context.Context, postID string) (int64, error)
	DeleteByPost(ctx context.Context, postID string) (int64, error)
}
