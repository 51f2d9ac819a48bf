package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupExposesInstruments(t *testing.T) {
	m, handler, err := Setup("feed-test")
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, http.MethodGet, "/v1/posts", http.StatusOK, 15*time.Millisecond)
	m.RecordLike(ctx, "post", "liked")
	m.RecordCommentCreated(ctx, true)
	m.RecordLeaderboard(ctx, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "feed_http_requests_total")
	assert.Contains(t, body, "feed_likes_total")
	assert.Contains(t, body, "feed_comments_created_total")
}

func TestSetupTwice(t *testing.T) {
	_, _, err := Setup("first")
	require.NoError(t, err)
	_, _, err = Setup("second")
	require.NoError(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest(ctx, http.MethodGet, "/", http.StatusOK, time.Second)
		m.RecordLike(ctx, "comment", "duplicate")
		m.RecordCommentCreated(ctx, false)
		m.RecordLeaderboard(ctx, time.Second)
		m.IncrementConnections(ctx)
		m.DecrementConnections(ctx)
	})
}
