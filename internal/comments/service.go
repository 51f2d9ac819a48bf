package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/apperr"
	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
	"github.com/leafsii/feed-backend/internal/metrics"
	"github.com/leafsii/feed-backend/internal/store"
)

// MaxContentLength bounds comment bodies, in runes
const MaxContentLength = 10000

type Service struct {
	db        interfaces.Database
	publisher store.Publisher
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewService wires the comment service. publisher and m may be nil.
func NewService(db interfaces.Database, publisher store.Publisher, m *metrics.Metrics, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		db:        db,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

type CreateInput struct {
	PostID   int64
	ParentID *int64
	AuthorID int64
	Content  string
}

// ValidateContent trims content and checks it is non-empty and not too long
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", apperr.ErrContentTooLong
	}
	return content, nil
}

// Create validates the input, assigns the comment's path and inserts it in
// one transaction. The post row stays locked from the sibling count to the
// insert, so concurrent replies under one parent get distinct ordinals.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entities.Comment, error) {
	content, err := ValidateContent(in.Content)
	if err != nil {
		return nil, err
	}

	var created entities.Comment
	err = s.db.Transaction(ctx, func(ctx context.Context, tx interfaces.Queries) error {
		if _, err := tx.GetPostForUpdate(ctx, in.PostID); err != nil {
			return notFound(err, apperr.ErrPostNotFound)
		}
		if _, err := tx.GetUser(ctx, in.AuthorID); err != nil {
			return notFound(err, apperr.ErrUserNotFound)
		}

		path, depth, err := AssignPath(ctx, tx, in.PostID, in.ParentID)
		if err != nil {
			return err
		}

		now := s.now()
		created = entities.Comment{
			PostID:    in.PostID,
			AuthorID:  in.AuthorID,
			ParentID:  in.ParentID,
			Content:   content,
			Path:      path,
			Depth:     depth,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateComment(ctx, &created); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCommentCreated(ctx, created.IsRoot())
	s.logger.Infow("Comment created",
		"comment_id", created.ID,
		"post_id", created.PostID,
		"user_id", created.AuthorID,
		"path", created.Path,
	)
	s.publish(ctx, store.ChannelCommentCreated, store.Event{
		Type:      "comment_created",
		PostID:    created.PostID,
		CommentID: created.ID,
		ParentID:  created.ParentID,
		UserID:    created.AuthorID,
		Path:      created.Path,
		At:        created.CreatedAt,
	})

	return &created, nil
}

// AssignPath computes the path and depth of a new comment. It must run in
// the same transaction as the insert, after the post row has been locked.
func AssignPath(ctx context.Context, tx interfaces.Queries, postID int64, parentID *int64) (string, int, error) {
	var parent *entities.Comment
	if parentID != nil {
		p, err := tx.GetComment(ctx, *parentID)
		if err != nil {
			return "", 0, notFound(err, apperr.ErrParentNotFound)
		}
		if p.PostID != postID {
			return "", 0, apperr.ErrParentPostMismatch
		}
		parent = p
	}

	siblings, err := tx.CountSiblings(ctx, postID, parentID)
	if err != nil {
		return "", 0, fmt.Errorf("count siblings: %w", err)
	}
	return NextPath(parent, siblings)
}

// Tree returns the post's comments as a forest. viewerID annotates is_liked.
func (s *Service) Tree(ctx context.Context, postID int64, viewerID *int64) ([]*Node, error) {
	rows, err := s.List(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}

	roots, orphans := BuildForest(rows)
	if orphans > 0 {
		s.logger.Warnw("Dropped orphaned comments while building tree", "post_id", postID, "orphans", orphans)
	}
	return roots, nil
}

// List returns the post's comments flat, in path order
func (s *Service) List(ctx context.Context, postID int64, viewerID *int64) ([]entities.CommentRow, error) {
	if _, err := s.db.GetPost(ctx, postID); err != nil {
		return nil, notFound(err, apperr.ErrPostNotFound)
	}

	rows, err := s.db.ListCommentRows(ctx, postID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list comments for post %d: %w", postID, err)
	}
	return rows, nil
}

func (s *Service) publish(ctx context.Context, channel string, event store.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, channel, event); err != nil {
		s.logger.Warnw("Failed to publish event", "channel", channel, "error", err)
	}
}

// notFound swaps a store miss for the domain error
func notFound(err, domain error) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return domain
	}
	return err
}
