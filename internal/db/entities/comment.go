package entities

import "time"

// Comment is a threaded comment addressed by its materialized path
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	PostID    int64     `json:"post" db:"post_id"`
	AuthorID  int64     `json:"author_id" db:"author_id"`
	ParentID  *int64    `json:"parent" db:"parent_id"`
	Content   string    `json:"content" db:"content"`
	Path      string    `json:"path" db:"path"`
	Depth     int       `json:"depth" db:"depth"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the comment hangs directly off its post
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// CommentRow is one row of the path-ordered scan used to rebuild a thread:
// the comment joined with its author, like count and the viewer's like state.
type CommentRow struct {
	Comment
	AuthorUsername string `json:"-"`
	LikeCount      int64  `json:"like_count"`
	IsLiked        bool   `json:"is_liked"`
}
