package interfaces

import (
	"context"

	"github.com/leafsii/feed-backend/internal/db/entities"
)

// Queries is the entity store surface. It is available on the Database
// directly (one statement per call) and inside Transaction.
//
// Create* methods fill in ID and zero timestamps on the passed record.
type Queries interface {
	// Users are provisioned by the auth collaborator
	CreateUser(ctx context.Context, user *entities.User) error
	GetUser(ctx context.Context, id int64) (*entities.User, error)
	GetUsers(ctx context.Context, ids []int64) (map[int64]entities.User, error)

	CreatePost(ctx context.Context, post *entities.Post) error
	GetPost(ctx context.Context, id int64) (*entities.Post, error)
	// GetPostForUpdate loads the post and serializes concurrent comment
	// creation under it until the surrounding transaction ends.
	GetPostForUpdate(ctx context.Context, id int64) (*entities.Post, error)
	GetPostSummary(ctx context.Context, id int64, viewerID *int64) (*entities.PostSummary, error)
	ListPosts(ctx context.Context, q PostQuery) ([]entities.PostSummary, error)
	// DeletePost removes the post with its comments and likes
	DeletePost(ctx context.Context, id int64) error

	GetComment(ctx context.Context, id int64) (*entities.Comment, error)
	// CountSiblings counts comments under parentID, or root comments of the
	// post when parentID is nil.
	CountSiblings(ctx context.Context, postID int64, parentID *int64) (int, error)
	CreateComment(ctx context.Context, comment *entities.Comment) error
	// ListCommentRows returns every comment of the post ordered by path
	ListCommentRows(ctx context.Context, postID int64, viewerID *int64) ([]entities.CommentRow, error)

	// CreatePostLike fails with ErrUniqueConstraint when the user already liked the post
	CreatePostLike(ctx context.Context, like *entities.PostLike) error
	DeletePostLike(ctx context.Context, postID, userID int64) (bool, error)
	CountPostLikes(ctx context.Context, postID int64) (int64, error)

	// CreateCommentLike fails with ErrUniqueConstraint when the user already liked the comment
	CreateCommentLike(ctx context.Context, like *entities.CommentLike) error
	DeleteCommentLike(ctx context.Context, commentID, userID int64) (bool, error)
	CountCommentLikes(ctx context.Context, commentID int64) (int64, error)

	// PostLikesByAuthor groups post likes created inside the window by post author
	PostLikesByAuthor(ctx context.Context, w Window) ([]entities.AuthorLikeCount, error)
	// CommentLikesByAuthor groups comment likes created inside the window by comment author
	CommentLikesByAuthor(ctx context.Context, w Window) ([]entities.AuthorLikeCount, error)
}
