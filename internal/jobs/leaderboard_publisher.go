package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/karma"
	"github.com/leafsii/feed-backend/internal/store"
)

// Leaderboards computes the karma leaderboard on demand
type Leaderboards interface {
	Compute(ctx context.Context, window time.Duration, limit int) (*karma.Leaderboard, error)
}

type LeaderboardPublisher struct {
	source    Leaderboards
	publisher store.Publisher
	logger    *zap.SugaredLogger
	config    LeaderboardPublisherConfig

	mu        sync.Mutex
	cancelCtx context.CancelFunc
}

type LeaderboardPublisherConfig struct {
	Interval time.Duration // zero disables publishing
	Window   time.Duration
	Limit    int
}

func DefaultLeaderboardPublisherConfig() LeaderboardPublisherConfig {
	return LeaderboardPublisherConfig{
		Interval: 30 * time.Second,
		Window:   karma.DefaultWindow,
		Limit:    karma.DefaultLimit,
	}
}

func NewLeaderboardPublisher(source Leaderboards, publisher store.Publisher, logger *zap.SugaredLogger, config LeaderboardPublisherConfig) *LeaderboardPublisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LeaderboardPublisher{
		source:    source,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Start publishes immediately and then every interval until ctx is done or
// Stop is called. Failed rounds are logged and retried on the next tick.
func (p *LeaderboardPublisher) Start(ctx context.Context) error {
	if p.config.Interval <= 0 {
		p.logger.Infow("Leaderboard publisher disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancelCtx = cancel
	p.mu.Unlock()
	defer cancel()

	p.logger.Infow("Starting leaderboard publisher",
		"interval", p.config.Interval,
		"window", p.config.Window,
		"limit", p.config.Limit,
	)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.PublishOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("Leaderboard publisher stopping due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
			p.PublishOnce(ctx)
		}
	}
}

func (p *LeaderboardPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelCtx != nil {
		p.cancelCtx()
	}
}

// PublishOnce computes a fresh leaderboard and publishes it on the
// leaderboard channel
func (p *LeaderboardPublisher) PublishOnce(ctx context.Context) {
	board, err := p.source.Compute(ctx, p.config.Window, p.config.Limit)
	if err != nil {
		p.logger.Warnw("Failed to compute leaderboard", "error", err)
		return
	}
	if err := p.publisher.Publish(ctx, store.ChannelLeaderboard, board); err != nil {
		p.logger.Warnw("Failed to publish leaderboard", "error", err)
		return
	}
	p.logger.Debugw("Published leaderboard", "entries", len(board.Leaderboard))
}
