package entities

import "time"

// PostLike is one user's like on a post. Unique on (post_id, user_id).
type PostLike struct {
	ID        int64     `json:"id" db:"id"`
	PostID    int64     `json:"post" db:"post_id"`
	UserID    int64     `json:"user" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CommentLike is one user's like on a comment. Unique on (comment_id, user_id).
type CommentLike struct {
	ID        int64     `json:"id" db:"id"`
	CommentID int64     `json:"comment" db:"comment_id"`
	UserID    int64     `json:"user" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AuthorLikeCount is the number of likes an author's content received inside a window
type AuthorLikeCount struct {
	AuthorID int64
	Likes    int64
}
