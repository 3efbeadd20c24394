package models

import "time"

// Like marks that UserID liked PostID. A user likes a post at most once.
type Like struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
