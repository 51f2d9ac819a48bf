package api

import (
	"time"

	"github.com/leafsii/feed-backend/internal/comments"
	"github.com/leafsii/feed-backend/internal/db/entities"
)

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ReadinessDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type CreatePostRequest struct {
	Content string `json:"content"`
}

type CreateCommentRequest struct {
	Post    int64  `json:"post"`
	Parent  *int64 `json:"parent"`
	Content string `json:"content"`
}

type PostListDTO struct {
	Posts  []entities.PostSummary `json:"posts"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

type CommentDTO struct {
	ID        int64           `json:"id"`
	Post      int64           `json:"post"`
	Parent    *int64          `json:"parent"`
	Author    entities.Author `json:"author"`
	Content   string          `json:"content"`
	Path      string          `json:"path"`
	Depth     int             `json:"depth"`
	CreatedAt time.Time       `json:"created_at"`
	LikeCount int64           `json:"like_count"`
	IsLiked   bool            `json:"is_liked"`
}

type CommentListDTO struct {
	PostID   int64        `json:"post_id"`
	Comments []CommentDTO `json:"comments"`
}

type CommentTreeDTO struct {
	PostID   int64            `json:"post_id"`
	Comments []*comments.Node `json:"comments"`
}

func newCommentDTO(c *entities.Comment, author entities.Author) CommentDTO {
	return CommentDTO{
		ID:        c.ID,
		Post:      c.PostID,
		Parent:    c.ParentID,
		Author:    author,
		Content:   c.Content,
		Path:      c.Path,
		Depth:     c.Depth,
		CreatedAt: c.CreatedAt,
	}
}

func commentRowDTO(row entities.CommentRow) CommentDTO {
	dto := newCommentDTO(&row.Comment, entities.Author{ID: row.AuthorID, Username: row.AuthorUsername})
	dto.LikeCount = row.LikeCount
	dto.IsLiked = row.IsLiked
	return dto
}
