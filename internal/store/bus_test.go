package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, sub Subscription) *Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for pubsub message")
		return nil
	}
}

func TestInMemoryPubSub(t *testing.T) {
	// an unreachable address forces the in-memory fallback
	logger, _ := zap.NewDevelopment()
	bus, err := NewBus("127.0.0.1:1", logger.Sugar())
	require.NoError(t, err)
	defer bus.Close()

	require.True(t, bus.IsInMemoryMode())
	require.NoError(t, bus.Ping(context.Background()))

	ctx := context.Background()
	sub := bus.Subscribe(ctx, ChannelLeaderboard)
	defer sub.Close()

	message := map[string]string{"event": "test_event"}
	require.NoError(t, bus.Publish(ctx, ChannelLeaderboard, message))

	msg := receive(t, sub)
	assert.Equal(t, ChannelLeaderboard, msg.Channel)

	var received map[string]string
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &received))
	assert.Equal(t, "test_event", received["event"])
}

func TestPatternSubscription(t *testing.T) {
	bus := NewInMemoryBus(nil)
	ctx := context.Background()

	events := bus.PSubscribe(ctx, PatternEvents)
	defer events.Close()
	board := bus.Subscribe(ctx, ChannelLeaderboard)
	defer board.Close()

	require.NoError(t, bus.Publish(ctx, ChannelPostLiked, map[string]int{"post_id": 1}))
	require.NoError(t, bus.Publish(ctx, ChannelLeaderboard, []int{}))

	assert.Equal(t, ChannelPostLiked, receive(t, events).Channel)
	assert.Equal(t, ChannelLeaderboard, receive(t, board).Channel)

	select {
	case msg := <-events.Messages():
		t.Fatalf("pattern subscription got unexpected message on %s", msg.Channel)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewInMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())

	sub := bus.Subscribe(ctx, ChannelCommentCreated)
	cancel()

	select {
	case _, ok := <-sub.Messages():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancel")
	}

	// publishing after the subscriber left must not panic
	assert.NoError(t, bus.Publish(context.Background(), ChannelCommentCreated, "late"))
}
