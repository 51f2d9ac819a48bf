package karma

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/leafsii/feed-backend/internal/apperr"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
	"github.com/leafsii/feed-backend/internal/metrics"
)

const (
	DefaultWindow = 24 * time.Hour
	DefaultLimit  = 5
)

// Leaderboard is a ranked karma snapshot
type Leaderboard struct {
	Leaderboard  []Entry   `json:"leaderboard"`
	CalculatedAt time.Time `json:"calculated_at"`
	Period       string    `json:"period"`
}

// Aggregator recomputes karma from raw like events on every call. Concurrent
// calls with the same window and limit share one computation; nothing is
// retained afterwards.
type Aggregator struct {
	db      interfaces.Queries
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
	now     func() time.Time
	group   singleflight.Group
}

func NewAggregator(db interfaces.Queries, m *metrics.Metrics, logger *zap.SugaredLogger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Aggregator{
		db:      db,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the time source
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Compute ranks the top limit users by karma earned from likes created in
// the trailing window
func (a *Aggregator) Compute(ctx context.Context, window time.Duration, limit int) (*Leaderboard, error) {
	if window <= 0 {
		return nil, apperr.ErrInvalidWindow
	}
	if limit <= 0 {
		return nil, apperr.ErrInvalidLimit
	}

	key := fmt.Sprintf("%d:%d", window, limit)
	v, err, shared := a.group.Do(key, func() (any, error) {
		return a.compute(context.WithoutCancel(ctx), window, limit)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		a.logger.Debugw("Leaderboard computation shared", "window", window, "limit", limit)
	}

	lb := *v.(*Leaderboard)
	lb.Leaderboard = make([]Entry, len(lb.Leaderboard))
	copy(lb.Leaderboard, v.(*Leaderboard).Leaderboard)
	return &lb, nil
}

func (a *Aggregator) compute(ctx context.Context, window time.Duration, limit int) (*Leaderboard, error) {
	start := time.Now()
	now := a.now()
	w := interfaces.Window{Since: now.Add(-window)}

	postLikes, err := a.db.PostLikesByAuthor(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("scan post likes: %w", err)
	}
	commentLikes, err := a.db.CommentLikesByAuthor(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("scan comment likes: %w", err)
	}

	totals := Totals(postLikes, commentLikes)
	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	users, err := a.db.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if missing := len(ids) - len(users); missing > 0 {
		a.logger.Warnw("Skipping karma for unknown users", "missing", missing)
	}

	entries := Rank(totals, users, limit)
	a.metrics.RecordLeaderboard(ctx, time.Since(start))

	return &Leaderboard{
		Leaderboard:  entries,
		CalculatedAt: now,
		Period:       Period(window),
	}, nil
}

// Period renders a window as "24h", falling back to Duration formatting
// for windows that are not whole hours
func Period(window time.Duration) string {
	if window%time.Hour == 0 {
		return fmt.Sprintf("%dh", int64(window/time.Hour))
	}
	return window.String()
}
