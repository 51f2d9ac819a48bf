package karma

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/apperr"
	"github.com/leafsii/feed-backend/internal/db/backends/memory"
	"github.com/leafsii/feed-backend/internal/db/entities"
)

var now = time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)

type world struct {
	t     *testing.T
	db    *memory.Database
	agg   *Aggregator
	users []*entities.User
}

func newWorld(t *testing.T, users int) *world {
	t.Helper()
	db := memory.NewDatabase()
	require.NoError(t, db.Connect(context.Background()))

	w := &world{t: t, db: db}
	for i := 1; i <= users; i++ {
		u := &entities.User{Username: fmt.Sprintf("u%d", i)}
		require.NoError(t, db.CreateUser(context.Background(), u))
		w.users = append(w.users, u)
	}
	w.agg = NewAggregator(db, nil, zap.NewNop().Sugar()).WithClock(func() time.Time { return now })
	return w
}

// u returns the 1-based user
func (w *world) u(n int) *entities.User { return w.users[n-1] }

func (w *world) post(author int) *entities.Post {
	p := &entities.Post{AuthorID: w.u(author).ID, Content: "p", CreatedAt: now.Add(-48 * time.Hour)}
	require.NoError(w.t, w.db.CreatePost(context.Background(), p))
	return p
}

func (w *world) comment(p *entities.Post, author int) *entities.Comment {
	n, err := w.db.CountSiblings(context.Background(), p.ID, nil)
	require.NoError(w.t, err)
	c := &entities.Comment{PostID: p.ID, AuthorID: w.u(author).ID, Content: "c", Path: fmt.Sprintf("%04d", n+1)}
	require.NoError(w.t, w.db.CreateComment(context.Background(), c))
	return c
}

func (w *world) likePost(p *entities.Post, user int, age time.Duration) {
	require.NoError(w.t, w.db.CreatePostLike(context.Background(),
		&entities.PostLike{PostID: p.ID, UserID: w.u(user).ID, CreatedAt: now.Add(-age)}))
}

func (w *world) likeComment(c *entities.Comment, user int, age time.Duration) {
	require.NoError(w.t, w.db.CreateCommentLike(context.Background(),
		&entities.CommentLike{CommentID: c.ID, UserID: w.u(user).ID, CreatedAt: now.Add(-age)}))
}

func (w *world) compute(limit int) *Leaderboard {
	lb, err := w.agg.Compute(context.Background(), DefaultWindow, limit)
	require.NoError(w.t, err)
	return lb
}

func TestPostLikesWeighFive(t *testing.T) {
	w := newWorld(t, 3)
	p := w.post(1)
	w.likePost(p, 2, time.Hour)
	w.likePost(p, 3, 2*time.Hour)

	lb := w.compute(DefaultLimit)
	require.Len(t, lb.Leaderboard, 1)
	assert.Equal(t, Entry{ID: w.u(1).ID, Username: "u1", Karma: 10, Rank: 1}, lb.Leaderboard[0])
	assert.Equal(t, "24h", lb.Period)
	assert.Equal(t, now, lb.CalculatedAt)
}

func TestElevenKarmaScenario(t *testing.T) {
	w := newWorld(t, 3)
	p := w.post(1)
	c := w.comment(p, 1)
	w.likePost(p, 2, time.Minute)
	w.likePost(p, 3, time.Minute)
	w.likeComment(c, 2, time.Minute)

	lb := w.compute(DefaultLimit)
	require.NotEmpty(t, lb.Leaderboard)
	assert.Equal(t, w.u(1).ID, lb.Leaderboard[0].ID)
	assert.Equal(t, int64(11), lb.Leaderboard[0].Karma)
	assert.Equal(t, 1, lb.Leaderboard[0].Rank)
}

func TestBackdatedLikeIsExcluded(t *testing.T) {
	w := newWorld(t, 2)
	p := w.post(1)
	w.likePost(p, 2, 25*time.Hour)

	lb := w.compute(DefaultLimit)
	assert.Empty(t, lb.Leaderboard)
	assert.NotNil(t, lb.Leaderboard)
}

func TestWindowBoundaryIsInclusive(t *testing.T) {
	w := newWorld(t, 2)
	p := w.post(1)
	c := w.comment(p, 1)
	w.likePost(p, 2, 24*time.Hour)
	w.likeComment(c, 2, 24*time.Hour+time.Second)

	lb := w.compute(DefaultLimit)
	require.Len(t, lb.Leaderboard, 1)
	assert.Equal(t, int64(5), lb.Leaderboard[0].Karma)
}

func TestLimitSortAndTieBreak(t *testing.T) {
	w := newWorld(t, 8)
	fan := 8

	// karma by author: u1=5, u2=15, u3=5, u4=2, u5=10, u6=1, u7=0
	for author, postLikes := range map[int]int{1: 1, 2: 3, 3: 1, 5: 2} {
		for i := 0; i < postLikes; i++ {
			w.likePost(w.post(author), fan, time.Hour)
		}
	}
	host := w.post(7)
	for i := 0; i < 2; i++ {
		w.likeComment(w.comment(host, 4), fan, time.Hour)
	}
	w.likeComment(w.comment(host, 6), fan, time.Hour)

	lb := w.compute(DefaultLimit)
	require.Len(t, lb.Leaderboard, DefaultLimit)

	got := make([]string, 0, len(lb.Leaderboard))
	for i, e := range lb.Leaderboard {
		assert.Equal(t, i+1, e.Rank)
		got = append(got, fmt.Sprintf("%s=%d", e.Username, e.Karma))
	}
	assert.Equal(t, []string{"u2=15", "u5=10", "u1=5", "u3=5", "u4=2"}, got)

	all := w.compute(50)
	assert.Len(t, all.Leaderboard, 6)
	for _, e := range all.Leaderboard {
		assert.Positive(t, e.Karma)
		assert.NotEqual(t, "u7", e.Username)
	}
}

func TestComputeValidation(t *testing.T) {
	w := newWorld(t, 0)
	_, err := w.agg.Compute(context.Background(), 0, 5)
	assert.ErrorIs(t, err, apperr.ErrInvalidWindow)
	_, err = w.agg.Compute(context.Background(), time.Hour, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidLimit)
}

func TestConcurrentCallsAgree(t *testing.T) {
	w := newWorld(t, 3)
	p := w.post(1)
	w.likePost(p, 2, time.Hour)

	var wg sync.WaitGroup
	results := make([]*Leaderboard, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lb, err := w.agg.Compute(context.Background(), DefaultWindow, DefaultLimit)
			assert.NoError(t, err)
			results[i] = lb
		}(i)
	}
	wg.Wait()

	for _, lb := range results {
		require.NotNil(t, lb)
		assert.Equal(t, results[0].Leaderboard, lb.Leaderboard)
	}

	// callers own their copy
	results[0].Leaderboard[0].Karma = 999
	assert.Equal(t, int64(5), results[1].Leaderboard[0].Karma)
}

func TestRankSkipsUnknownUsers(t *testing.T) {
	totals := map[int64]int64{1: 10, 2: 7, 3: 3}
	users := map[int64]entities.User{1: {ID: 1, Username: "a"}, 3: {ID: 3, Username: "c"}}

	entries := Rank(totals, users, 5)
	assert.Equal(t, []Entry{
		{ID: 1, Username: "a", Karma: 10, Rank: 1},
		{ID: 3, Username: "c", Karma: 3, Rank: 2},
	}, entries)
}

func TestTotalsDropsNonPositive(t *testing.T) {
	totals := Totals(
		[]entities.AuthorLikeCount{{AuthorID: 1, Likes: 2}, {AuthorID: 2, Likes: 0}},
		[]entities.AuthorLikeCount{{AuthorID: 1, Likes: 1}, {AuthorID: 3, Likes: 4}},
	)
	assert.Equal(t, map[int64]int64{1: 11, 3: 4}, totals)
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "24h", Period(24*time.Hour))
	assert.Equal(t, "1h", Period(time.Hour))
	assert.Equal(t, "1h30m0s", Period(90*time.Minute))
}
