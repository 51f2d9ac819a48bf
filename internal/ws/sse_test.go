package ws

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/store"
)

type sseEvent struct {
	name string
	id   string
	data string
}

func readSSE(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "id: "):
			ev.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, h *SSEHandler, query string, header http.Header) (*http.Response, *bufio.Reader) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleSSE))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+query, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

func TestSSEStreamsRequestedTopics(t *testing.T) {
	bus := store.NewInMemoryBus(nil)
	h := NewSSEHandler(bus, []string{"https://app.example"}, zap.NewNop().Sugar(), nil)

	resp, r := openStream(t, h, "?topics=leaderboard", http.Header{"Origin": []string{"https://app.example"}})
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	connected := readSSE(t, r)
	assert.Equal(t, "connected", connected.name)
	assert.Contains(t, connected.data, "leaderboard")

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, store.ChannelCommentCreated, store.Event{Type: "comment_created"}))
	require.NoError(t, bus.Publish(ctx, store.ChannelLeaderboard, map[string]any{"period": "24h"}))

	ev := readSSE(t, r)
	assert.Equal(t, "leaderboard_update", ev.name)
	assert.Equal(t, store.ChannelLeaderboard, ev.id)
	assert.JSONEq(t, `{"period":"24h"}`, ev.data)
}

func TestSSEDefaultsToAllTopics(t *testing.T) {
	bus := store.NewInMemoryBus(nil)
	h := NewSSEHandler(bus, nil, zap.NewNop().Sugar(), nil)

	resp, r := openStream(t, h, "", http.Header{"Origin": []string{"https://evil.example"}})
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "connected", readSSE(t, r).name)

	require.NoError(t, bus.Publish(context.Background(), store.ChannelPostUnliked, store.Event{Type: "post_unliked", PostID: 4}))
	ev := readSSE(t, r)
	assert.Equal(t, "post_unliked", ev.name)
	assert.Contains(t, ev.data, `"post_id":4`)
}

func TestSSEHeartbeat(t *testing.T) {
	h := NewSSEHandler(store.NewInMemoryBus(nil), nil, zap.NewNop().Sugar(), nil)
	h.heartbeat = 20 * time.Millisecond

	_, r := openStream(t, h, "?topics=comments", nil)
	require.Equal(t, "connected", readSSE(t, r).name)

	ev := readSSE(t, r)
	assert.Equal(t, "heartbeat", ev.name)
	assert.Equal(t, "ping", ev.id)
}

func TestSplitChannels(t *testing.T) {
	channels, patterns := splitChannels([]string{"events", "likes", "leaderboard", "feed:events:post_liked"})
	assert.Equal(t, []string{store.PatternEvents}, patterns)
	assert.Equal(t, []string{
		store.ChannelPostLiked,
		store.ChannelPostUnliked,
		store.ChannelCommentLiked,
		store.ChannelCommentUnliked,
		store.ChannelLeaderboard,
	}, channels)
}
