package store

import "time"

// Event is the payload published on the feed:events:* channels
type Event struct {
	Type      string    `json:"type"`
	PostID    int64     `json:"post_id"`
	CommentID int64     `json:"comment_id,omitempty"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	UserID    int64     `json:"user_id"`
	Path      string    `json:"path,omitempty"`
	LikeCount *int64    `json:"like_count,omitempty"`
	At        time.Time `json:"at"`
}
