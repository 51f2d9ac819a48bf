package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channels carrying feed events
const (
	ChannelCommentCreated = "feed:events:comment_created"
	ChannelPostLiked      = "feed:events:post_liked"
	ChannelPostUnliked    = "feed:events:post_unliked"
	ChannelCommentLiked   = "feed:events:comment_liked"
	ChannelCommentUnliked = "feed:events:comment_unliked"
	ChannelLeaderboard    = "feed:leaderboard"

	// PatternEvents matches every feed:events:* channel
	PatternEvents = "feed:events:*"
)

// Publisher is the write side of the bus used by the services
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// Bus fans feed events out to stream clients. It runs on Redis pub/sub when
// Redis is reachable and falls back to an in-process hub otherwise.
type Bus struct {
	// When Redis is available, use client for all operations
	client *redis.Client
	// In-memory pubsub hub for when Redis is unavailable
	pubsubHub *PubSubHub

	logger *zap.SugaredLogger
}

var _ Publisher = (*Bus)(nil)

func NewBus(addr string, logger *zap.SugaredLogger) (*Bus, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("Redis unavailable; using in-memory pubsub", "addr", addr, "error", err)
		_ = client.Close()
		return NewInMemoryBus(logger), nil
	}

	logger.Infow("Connected to redis", "addr", addr)
	return &Bus{client: client, logger: logger}, nil
}

// NewInMemoryBus creates a bus that never touches Redis
func NewInMemoryBus(logger *zap.SugaredLogger) *Bus {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bus{pubsubHub: NewPubSubHub(), logger: logger}
}

// Publish JSON-encodes message onto channel
func (b *Bus) Publish(ctx context.Context, channel string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}

	if b.client != nil {
		if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
			b.logger.Errorw("Publish error", "channel", channel, "error", err)
			return fmt.Errorf("pubsub publish error: %w", err)
		}
		return nil
	}

	b.pubsubHub.Publish(channel, string(data))
	b.logger.Debugw("Published to in-memory pubsub", "channel", channel)
	return nil
}

// Subscribe listens on exact channel names
func (b *Bus) Subscribe(ctx context.Context, channels ...string) Subscription {
	if b.client != nil {
		return newRedisSubscription(ctx, b.client.Subscribe(ctx, channels...))
	}
	return b.pubsubHub.Subscribe(ctx, channels...)
}

// PSubscribe listens on glob patterns such as PatternEvents
func (b *Bus) PSubscribe(ctx context.Context, patterns ...string) Subscription {
	if b.client != nil {
		return newRedisSubscription(ctx, b.client.PSubscribe(ctx, patterns...))
	}
	return b.pubsubHub.PSubscribe(ctx, patterns...)
}

// IsInMemoryMode returns true if the bus is running without Redis
func (b *Bus) IsInMemoryMode() bool {
	return b.client == nil
}

// Ping checks the Redis connection; in-memory mode is always healthy
func (b *Bus) Ping(ctx context.Context) error {
	if b.client != nil {
		return b.client.Ping(ctx).Err()
	}
	return nil
}

func (b *Bus) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// redisSubscription adapts a redis.PubSub to Subscription
type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan *Message
	done   chan struct{}
	once   sync.Once
	err    error
}

func newRedisSubscription(ctx context.Context, pubsub *redis.PubSub) *redisSubscription {
	s := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan *Message, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.out)
		defer s.Close()
		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case s.out <- &Message{Channel: msg.Channel, Payload: msg.Payload}:
				default:
				}
			}
		}
	}()
	return s
}

func (s *redisSubscription) Messages() <-chan *Message {
	return s.out
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.pubsub.Close()
	})
	return s.err
}
