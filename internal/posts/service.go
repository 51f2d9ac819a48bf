package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/apperr"
	"github.com/leafsii/feed-backend/internal/comments"
	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Detail is a post with its full comment thread
type Detail struct {
	entities.PostSummary
	Comments []*comments.Node `json:"comments"`
}

type Service struct {
	db       interfaces.Database
	comments *comments.Service
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewService(db interfaces.Database, commentSvc *comments.Service, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		db:       db,
		comments: commentSvc,
		logger:   logger,
		now:      time.Now,
	}
}

// Create publishes a new post by authorID
func (s *Service) Create(ctx context.Context, authorID int64, content string) (*entities.PostSummary, error) {
	content, err := comments.ValidateContent(content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	post := &entities.Post{AuthorID: authorID, Content: content, CreatedAt: now, UpdatedAt: now}
	if err := s.db.CreatePost(ctx, post); err != nil {
		if errors.Is(err, interfaces.ErrForeignKeyConstraint) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.logger.Infow("Post created", "post_id", post.ID, "user_id", authorID)
	return s.db.GetPostSummary(ctx, post.ID, &authorID)
}

// List returns a page of the feed, newest first
func (s *Service) List(ctx context.Context, viewerID *int64, limit, offset int) ([]entities.PostSummary, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	offset = max(offset, 0)

	posts, err := s.db.ListPosts(ctx, interfaces.PostQuery{ViewerID: viewerID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Get returns the post with its comment forest
func (s *Service) Get(ctx context.Context, postID int64, viewerID *int64) (*Detail, error) {
	summary, err := s.db.GetPostSummary(ctx, postID, viewerID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, apperr.ErrPostNotFound
		}
		return nil, fmt.Errorf("get post %d: %w", postID, err)
	}

	tree, err := s.comments.Tree(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	return &Detail{PostSummary: *summary, Comments: tree}, nil
}

// Delete removes the post with its comments and likes. Only the author may.
func (s *Service) Delete(ctx context.Context, postID, userID int64) error {
	return s.db.Transaction(ctx, func(ctx context.Context, tx interfaces.Queries) error {
		post, err := tx.GetPostForUpdate(ctx, postID)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return apperr.ErrPostNotFound
			}
			return err
		}
		if post.AuthorID != userID {
			return apperr.ErrForbidden
		}
		if err := tx.DeletePost(ctx, postID); err != nil {
			return fmt.Errorf("delete post %d: %w", postID, err)
		}
		s.logger.Infow("Post deleted", "post_id", postID, "user_id", userID)
		return nil
	})
}
