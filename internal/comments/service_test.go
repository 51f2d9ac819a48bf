package comments

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/apperr"
	"github.com/leafsii/feed-backend/internal/db/backends/memory"
	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
	"github.com/leafsii/feed-backend/internal/store"
)

type fixture struct {
	db    *memory.Database
	svc   *Service
	alice *entities.User
	bob   *entities.User
	post  *entities.Post
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db := memory.NewDatabase()
	require.NoError(t, db.Connect(ctx))

	alice := &entities.User{Username: "alice"}
	bob := &entities.User{Username: "bob"}
	require.NoError(t, db.CreateUser(ctx, alice))
	require.NoError(t, db.CreateUser(ctx, bob))

	post := &entities.Post{AuthorID: alice.ID, Content: "hello"}
	require.NoError(t, db.CreatePost(ctx, post))

	return &fixture{
		db:    db,
		svc:   NewService(db, nil, nil, zap.NewNop().Sugar()),
		alice: alice,
		bob:   bob,
		post:  post,
	}
}

func (f *fixture) create(t *testing.T, parent *int64, author int64) *entities.Comment {
	t.Helper()
	c, err := f.svc.Create(context.Background(), CreateInput{
		PostID: f.post.ID, ParentID: parent, AuthorID: author, Content: "comment",
	})
	require.NoError(t, err)
	return c
}

func TestCreateAssignsPaths(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, nil, f.bob.ID)
	second := f.create(t, nil, f.alice.ID)
	reply := f.create(t, &first.ID, f.alice.ID)
	reply2 := f.create(t, &first.ID, f.bob.ID)
	nested := f.create(t, &reply.ID, f.bob.ID)

	assert.Equal(t, "0001", first.Path)
	assert.Equal(t, 0, first.Depth)
	assert.Equal(t, "0002", second.Path)
	assert.Equal(t, "0001.0001", reply.Path)
	assert.Equal(t, 1, reply.Depth)
	assert.Equal(t, "0001.0002", reply2.Path)
	assert.Equal(t, "0001.0001.0001", nested.Path)
	assert.Equal(t, 2, nested.Depth)

	for _, c := range []*entities.Comment{first, second, reply, reply2, nested} {
		assert.True(t, ValidPath(c.Path, c.Depth), c.Path)
	}
}

func TestCreateRejectsParentFromOtherPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &entities.Post{AuthorID: f.bob.ID, Content: "other"}
	require.NoError(t, f.db.CreatePost(ctx, other))
	foreign, err := f.svc.Create(ctx, CreateInput{PostID: other.ID, AuthorID: f.bob.ID, Content: "there"})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateInput{
		PostID: f.post.ID, ParentID: &foreign.ID, AuthorID: f.alice.ID, Content: "here",
	})
	assert.ErrorIs(t, err, apperr.ErrParentPostMismatch)

	rows, err := f.db.ListCommentRows(ctx, f.post.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	missing := int64(999)

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{name: "empty content", in: CreateInput{PostID: f.post.ID, AuthorID: f.bob.ID, Content: "   "}, want: apperr.ErrEmptyContent},
		{name: "missing post", in: CreateInput{PostID: 999, AuthorID: f.bob.ID, Content: "x"}, want: apperr.ErrPostNotFound},
		{name: "missing parent", in: CreateInput{PostID: f.post.ID, ParentID: &missing, AuthorID: f.bob.ID, Content: "x"}, want: apperr.ErrParentNotFound},
		{name: "missing author", in: CreateInput{PostID: f.post.ID, AuthorID: 999, Content: "x"}, want: apperr.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConcurrentCreateGetsDistinctOrdinals(t *testing.T) {
	f := newFixture(t)
	root := f.create(t, nil, f.alice.ID)

	const n = 40
	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.svc.Create(context.Background(), CreateInput{
				PostID: f.post.ID, ParentID: &root.ID, AuthorID: f.bob.ID, Content: fmt.Sprintf("reply %d", i),
			})
			errs[i] = err
			if err == nil {
				paths[i] = c.Path
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Strings(paths)
	for i, p := range paths {
		assert.Equal(t, "0001."+Segment(i+1), p)
	}
}

func TestPathOrderIsPreOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	var ids []int64
	for i := 0; i < 60; i++ {
		var parent *int64
		if len(ids) > 0 && rng.Intn(3) > 0 {
			p := ids[rng.Intn(len(ids))]
			parent = &p
		}
		ids = append(ids, f.create(t, parent, f.bob.ID).ID)
	}

	rows, err := f.svc.List(ctx, f.post.ID, nil)
	require.NoError(t, err)
	tree, err := f.svc.Tree(ctx, f.post.ID, nil)
	require.NoError(t, err)

	var walked []int64
	Walk(tree, func(n *Node) { walked = append(walked, n.ID) })

	flat := make([]int64, len(rows))
	for i, r := range rows {
		flat[i] = r.ID
	}
	assert.Equal(t, flat, walked)
	assert.Len(t, walked, 60)

	// every node is attached under the parent its path names
	Walk(tree, func(n *Node) {
		for _, child := range n.Replies {
			parent, ok := ParentPath(child.Path)
			require.True(t, ok)
			assert.Equal(t, n.Path, parent)
			assert.Equal(t, n.Depth+1, child.Depth)
		}
	})
}

func TestTreeAnnotatesViewerLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(t, nil, f.bob.ID)
	require.NoError(t, f.db.CreateCommentLike(ctx, &entities.CommentLike{CommentID: c.ID, UserID: f.alice.ID}))

	tree, err := f.svc.Tree(ctx, f.post.ID, &f.alice.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.True(t, tree[0].IsLiked)
	assert.Equal(t, int64(1), tree[0].LikeCount)
	assert.Equal(t, "bob", tree[0].Author.Username)

	anon, err := f.svc.Tree(ctx, f.post.ID, nil)
	require.NoError(t, err)
	assert.False(t, anon[0].IsLiked)

	_, err = f.svc.Tree(ctx, 999, nil)
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, message any) error {
	return m.Called(ctx, channel, message).Error(0)
}

func TestCreatePublishesAfterCommit(t *testing.T) {
	f := newFixture(t)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, store.ChannelCommentCreated, mock.MatchedBy(func(e store.Event) bool {
		return e.Type == "comment_created" && e.PostID == f.post.ID && e.Path == "0001"
	})).Return(fmt.Errorf("bus down")).Once()
	f.svc.publisher = pub

	// a failing bus never fails the committed write
	c := f.create(t, nil, f.bob.ID)
	assert.Equal(t, "0001", c.Path)
	pub.AssertExpectations(t)
}

// sibling count stub for exercising the capacity limit without 9999 inserts
type siblingQueries struct {
	interfaces.Queries
	siblings int
}

func (q siblingQueries) CountSiblings(context.Context, int64, *int64) (int, error) {
	return q.siblings, nil
}

func TestAssignPathSiblingLimit(t *testing.T) {
	_, _, err := AssignPath(context.Background(), siblingQueries{siblings: MaxSiblings}, 1, nil)
	assert.ErrorIs(t, err, apperr.ErrSiblingLimit)

	path, depth, err := AssignPath(context.Background(), siblingQueries{siblings: MaxSiblings - 1}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "9999", path)
	assert.Zero(t, depth)
}
