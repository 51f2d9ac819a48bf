package likes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/apperr"
	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
	"github.com/leafsii/feed-backend/internal/metrics"
	"github.com/leafsii/feed-backend/internal/store"
)

// Target is the kind of content being liked
type Target string

const (
	TargetPost    Target = "post"
	TargetComment Target = "comment"
)

const (
	StatusLiked   = "liked"
	StatusUnliked = "unliked"
)

// Result is the outcome of a like or unlike
type Result struct {
	Status    string `json:"status"`
	LikeCount int64  `json:"like_count"`
}

// Ledger registers likes. Uniqueness is enforced by the store's
// (target, user) constraint, not by a prior existence check.
type Ledger struct {
	db        interfaces.Database
	publisher store.Publisher
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewLedger wires the like ledger. publisher and m may be nil.
func NewLedger(db interfaces.Database, publisher store.Publisher, m *metrics.Metrics, logger *zap.SugaredLogger) *Ledger {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Ledger{
		db:        db,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// target bundles the per-kind store operations
type target struct {
	kind     Target
	notFound error
	author   func(ctx context.Context, tx interfaces.Queries, id int64) (authorID, postID int64, err error)
	insert   func(ctx context.Context, tx interfaces.Queries, id, userID int64, at time.Time) error
	remove   func(ctx context.Context, tx interfaces.Queries, id, userID int64) (bool, error)
	count    func(ctx context.Context, tx interfaces.Queries, id int64) (int64, error)
	liked    string
	unliked  string
}

var targets = map[Target]target{
	TargetPost: {
		kind:     TargetPost,
		notFound: apperr.ErrPostNotFound,
		author: func(ctx context.Context, tx interfaces.Queries, id int64) (int64, int64, error) {
			p, err := tx.GetPost(ctx, id)
			if err != nil {
				return 0, 0, err
			}
			return p.AuthorID, p.ID, nil
		},
		insert: func(ctx context.Context, tx interfaces.Queries, id, userID int64, at time.Time) error {
			return tx.CreatePostLike(ctx, &entities.PostLike{PostID: id, UserID: userID, CreatedAt: at})
		},
		remove: func(ctx context.Context, tx interfaces.Queries, id, userID int64) (bool, error) {
			return tx.DeletePostLike(ctx, id, userID)
		},
		count: func(ctx context.Context, tx interfaces.Queries, id int64) (int64, error) {
			return tx.CountPostLikes(ctx, id)
		},
		liked:   store.ChannelPostLiked,
		unliked: store.ChannelPostUnliked,
	},
	TargetComment: {
		kind:     TargetComment,
		notFound: apperr.ErrCommentNotFound,
		author: func(ctx context.Context, tx interfaces.Queries, id int64) (int64, int64, error) {
			c, err := tx.GetComment(ctx, id)
			if err != nil {
				return 0, 0, err
			}
			return c.AuthorID, c.PostID, nil
		},
		insert: func(ctx context.Context, tx interfaces.Queries, id, userID int64, at time.Time) error {
			return tx.CreateCommentLike(ctx, &entities.CommentLike{CommentID: id, UserID: userID, CreatedAt: at})
		},
		remove: func(ctx context.Context, tx interfaces.Queries, id, userID int64) (bool, error) {
			return tx.DeleteCommentLike(ctx, id, userID)
		},
		count: func(ctx context.Context, tx interfaces.Queries, id int64) (int64, error) {
			return tx.CountCommentLikes(ctx, id)
		},
		liked:   store.ChannelCommentLiked,
		unliked: store.ChannelCommentUnliked,
	},
}

func lookup(kind Target) (target, error) {
	t, ok := targets[kind]
	if !ok {
		return target{}, apperr.Validation("INVALID_TARGET", "unknown like target %q", kind)
	}
	return t, nil
}

// Like records userID's like on the target and returns the fresh like count.
// A second like by the same user fails with apperr.ErrDuplicateLike even
// when both requests race.
func (l *Ledger) Like(ctx context.Context, kind Target, targetID, userID int64) (*Result, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}

	var postID, count int64
	err = l.db.Transaction(ctx, func(ctx context.Context, tx interfaces.Queries) error {
		authorID, pid, err := t.author(ctx, tx, targetID)
		if err != nil {
			return notFound(err, t.notFound)
		}
		postID = pid
		if authorID == userID {
			return apperr.ErrSelfLike
		}

		if err := t.insert(ctx, tx, targetID, userID, l.now()); err != nil {
			switch {
			case errors.Is(err, interfaces.ErrUniqueConstraint):
				return apperr.ErrDuplicateLike
			case errors.Is(err, interfaces.ErrForeignKeyConstraint):
				return apperr.ErrUserNotFound
			}
			return fmt.Errorf("insert %s like: %w", kind, err)
		}

		count, err = t.count(ctx, tx, targetID)
		return err
	})
	if err != nil {
		l.metrics.RecordLike(ctx, string(kind), outcome(err))
		return nil, err
	}

	l.metrics.RecordLike(ctx, string(kind), StatusLiked)
	l.logger.Infow("Like registered", "target", kind, "target_id", targetID, "user_id", userID, "like_count", count)
	l.publish(ctx, t.liked, kind, StatusLiked, targetID, postID, userID, count)

	return &Result{Status: StatusLiked, LikeCount: count}, nil
}

// Unlike removes userID's like, failing with apperr.ErrNotLiked when absent
func (l *Ledger) Unlike(ctx context.Context, kind Target, targetID, userID int64) (*Result, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}

	var postID, count int64
	err = l.db.Transaction(ctx, func(ctx context.Context, tx interfaces.Queries) error {
		_, pid, err := t.author(ctx, tx, targetID)
		if err != nil {
			return notFound(err, t.notFound)
		}
		postID = pid

		removed, err := t.remove(ctx, tx, targetID, userID)
		if err != nil {
			return fmt.Errorf("delete %s like: %w", kind, err)
		}
		if !removed {
			return apperr.ErrNotLiked
		}

		count, err = t.count(ctx, tx, targetID)
		return err
	})
	if err != nil {
		l.metrics.RecordLike(ctx, string(kind), outcome(err))
		return nil, err
	}

	l.metrics.RecordLike(ctx, string(kind), StatusUnliked)
	l.logger.Infow("Like removed", "target", kind, "target_id", targetID, "user_id", userID, "like_count", count)
	l.publish(ctx, t.unliked, kind, StatusUnliked, targetID, postID, userID, count)

	return &Result{Status: StatusUnliked, LikeCount: count}, nil
}

func (l *Ledger) LikePost(ctx context.Context, postID, userID int64) (*Result, error) {
	return l.Like(ctx, TargetPost, postID, userID)
}

func (l *Ledger) UnlikePost(ctx context.Context, postID, userID int64) (*Result, error) {
	return l.Unlike(ctx, TargetPost, postID, userID)
}

func (l *Ledger) LikeComment(ctx context.Context, commentID, userID int64) (*Result, error) {
	return l.Like(ctx, TargetComment, commentID, userID)
}

func (l *Ledger) UnlikeComment(ctx context.Context, commentID, userID int64) (*Result, error) {
	return l.Unlike(ctx, TargetComment, commentID, userID)
}

func (l *Ledger) publish(ctx context.Context, channel string, kind Target, status string, targetID, postID, userID, count int64) {
	if l.publisher == nil {
		return
	}
	event := store.Event{
		Type:      string(kind) + "_" + status,
		PostID:    postID,
		UserID:    userID,
		LikeCount: &count,
		At:        l.now(),
	}
	if kind == TargetComment {
		event.CommentID = targetID
	}
	if err := l.publisher.Publish(ctx, channel, event); err != nil {
		l.logger.Warnw("Failed to publish event", "channel", channel, "error", err)
	}
}

func outcome(err error) string {
	if e, ok := apperr.As(err); ok {
		return e.Kind.String()
	}
	return "error"
}

func notFound(err, domain error) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return domain
	}
	return err
}
