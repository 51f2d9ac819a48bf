package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
)

// likeKey is the composite unique key (target_id, user_id)
type likeKey struct {
	target int64
	user   int64
}

// pathKey is the composite unique key (post_id, path)
type pathKey struct {
	post int64
	path string
}

type tables struct {
	users     map[int64]entities.User
	usernames map[string]int64

	posts map[int64]entities.Post

	comments     map[int64]entities.Comment
	commentPaths map[pathKey]int64

	postLikes    map[int64]entities.PostLike
	postLikeKeys map[likeKey]int64

	commentLikes    map[int64]entities.CommentLike
	commentLikeKeys map[likeKey]int64

	seq map[string]int64
}

func newTables() *tables {
	return &tables{
		users:           make(map[int64]entities.User),
		usernames:       make(map[string]int64),
		posts:           make(map[int64]entities.Post),
		comments:        make(map[int64]entities.Comment),
		commentPaths:    make(map[pathKey]int64),
		postLikes:       make(map[int64]entities.PostLike),
		postLikeKeys:    make(map[likeKey]int64),
		commentLikes:    make(map[int64]entities.CommentLike),
		commentLikeKeys: make(map[likeKey]int64),
		seq:             make(map[string]int64),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies every table. Records are values; Comment.ParentID is shared
// but never mutated after insert.
func (t *tables) clone() *tables {
	return &tables{
		users:           cloneMap(t.users),
		usernames:       cloneMap(t.usernames),
		posts:           cloneMap(t.posts),
		comments:        cloneMap(t.comments),
		commentPaths:    cloneMap(t.commentPaths),
		postLikes:       cloneMap(t.postLikes),
		postLikeKeys:    cloneMap(t.postLikeKeys),
		commentLikes:    cloneMap(t.commentLikes),
		commentLikeKeys: cloneMap(t.commentLikeKeys),
		seq:             cloneMap(t.seq),
	}
}

func (t *tables) nextID(table string) int64 {
	t.seq[table]++
	return t.seq[table]
}

// queries implements interfaces.Queries over the tables without locking
type queries struct {
	t   *tables
	now func() time.Time
}

var _ interfaces.Queries = (*queries)(nil)

func (q *queries) stamp(ts *time.Time) {
	if ts.IsZero() {
		*ts = q.now()
	}
}

func fkError(field string, value int64) error {
	return fmt.Errorf("%w: field '%s' references non-existent record '%d'", interfaces.ErrForeignKeyConstraint, field, value)
}

func (q *queries) CreateUser(ctx context.Context, user *entities.User) error {
	if _, taken := q.t.usernames[user.Username]; taken {
		return fmt.Errorf("%w: field 'username' value '%s'", interfaces.ErrUniqueConstraint, user.Username)
	}
	if user.ID == 0 {
		user.ID = q.t.nextID("users")
	} else if _, exists := q.t.users[user.ID]; exists {
		return fmt.Errorf("%w: field 'id' value '%d'", interfaces.ErrUniqueConstraint, user.ID)
	} else if user.ID > q.t.seq["users"] {
		q.t.seq["users"] = user.ID
	}
	q.stamp(&user.CreatedAt)

	q.t.users[user.ID] = *user
	q.t.usernames[user.Username] = user.ID
	return nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (*entities.User, error) {
	user, ok := q.t.users[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &user, nil
}

func (q *queries) GetUsers(ctx context.Context, ids []int64) (map[int64]entities.User, error) {
	out := make(map[int64]entities.User, len(ids))
	for _, id := range ids {
		if user, ok := q.t.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

func (q *queries) CreatePost(ctx context.Context, post *entities.Post) error {
	if _, ok := q.t.users[post.AuthorID]; !ok {
		return fkError("author_id", post.AuthorID)
	}
	post.ID = q.t.nextID("posts")
	q.stamp(&post.CreatedAt)
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}

	q.t.posts[post.ID] = *post
	return nil
}

func (q *queries) GetPost(ctx context.Context, id int64) (*entities.Post, error) {
	post, ok := q.t.posts[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &post, nil
}

// GetPostForUpdate needs no row lock here: transactions already hold the
// database write lock.
func (q *queries) GetPostForUpdate(ctx context.Context, id int64) (*entities.Post, error) {
	return q.GetPost(ctx, id)
}

func (q *queries) GetPostSummary(ctx context.Context, id int64, viewerID *int64) (*entities.PostSummary, error) {
	post, ok := q.t.posts[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	likes, comments := q.postCounts()
	summary := q.summarize(post, likes, comments, viewerID)
	return &summary, nil
}

func (q *queries) ListPosts(ctx context.Context, pq interfaces.PostQuery) ([]entities.PostSummary, error) {
	posts := make([]entities.Post, 0, len(q.t.posts))
	for _, post := range q.t.posts {
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})

	if pq.Offset > 0 {
		if pq.Offset >= len(posts) {
			posts = nil
		} else {
			posts = posts[pq.Offset:]
		}
	}
	if pq.Limit > 0 && pq.Limit < len(posts) {
		posts = posts[:pq.Limit]
	}

	likes, comments := q.postCounts()
	out := make([]entities.PostSummary, 0, len(posts))
	for _, post := range posts {
		out = append(out, q.summarize(post, likes, comments, pq.ViewerID))
	}
	return out, nil
}

func (q *queries) postCounts() (likes, comments map[int64]int64) {
	likes = make(map[int64]int64)
	for _, like := range q.t.postLikes {
		likes[like.PostID]++
	}
	comments = make(map[int64]int64)
	for _, comment := range q.t.comments {
		comments[comment.PostID]++
	}
	return likes, comments
}

func (q *queries) summarize(post entities.Post, likes, comments map[int64]int64, viewerID *int64) entities.PostSummary {
	author := q.t.users[post.AuthorID]
	summary := entities.PostSummary{
		Post:         post,
		Author:       entities.Author{ID: author.ID, Username: author.Username},
		LikeCount:    likes[post.ID],
		CommentCount: comments[post.ID],
	}
	if viewerID != nil {
		_, summary.IsLiked = q.t.postLikeKeys[likeKey{target: post.ID, user: *viewerID}]
	}
	return summary
}

func (q *queries) DeletePost(ctx context.Context, id int64) error {
	if _, ok := q.t.posts[id]; !ok {
		return interfaces.ErrNotFound
	}

	for commentID, comment := range q.t.comments {
		if comment.PostID != id {
			continue
		}
		for likeID, like := range q.t.commentLikes {
			if like.CommentID == commentID {
				delete(q.t.commentLikes, likeID)
				delete(q.t.commentLikeKeys, likeKey{target: commentID, user: like.UserID})
			}
		}
		delete(q.t.commentPaths, pathKey{post: id, path: comment.Path})
		delete(q.t.comments, commentID)
	}
	for likeID, like := range q.t.postLikes {
		if like.PostID == id {
			delete(q.t.postLikes, likeID)
			delete(q.t.postLikeKeys, likeKey{target: id, user: like.UserID})
		}
	}
	delete(q.t.posts, id)
	return nil
}

func (q *queries) GetComment(ctx context.Context, id int64) (*entities.Comment, error) {
	comment, ok := q.t.comments[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &comment, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (q *queries) CountSiblings(ctx context.Context, postID int64, parentID *int64) (int, error) {
	n := 0
	for _, comment := range q.t.comments {
		if comment.PostID == postID && sameParent(comment.ParentID, parentID) {
			n++
		}
	}
	return n, nil
}

func (q *queries) CreateComment(ctx context.Context, comment *entities.Comment) error {
	if _, ok := q.t.posts[comment.PostID]; !ok {
		return fkError("post_id", comment.PostID)
	}
	if _, ok := q.t.users[comment.AuthorID]; !ok {
		return fkError("author_id", comment.AuthorID)
	}
	if comment.ParentID != nil {
		if _, ok := q.t.comments[*comment.ParentID]; !ok {
			return fkError("parent_id", *comment.ParentID)
		}
	}
	key := pathKey{post: comment.PostID, path: comment.Path}
	if _, taken := q.t.commentPaths[key]; taken {
		return fmt.Errorf("%w: unique index 'comments_post_id_path_key'", interfaces.ErrUniqueConstraint)
	}

	comment.ID = q.t.nextID("comments")
	q.stamp(&comment.CreatedAt)
	if comment.UpdatedAt.IsZero() {
		comment.UpdatedAt = comment.CreatedAt
	}
	stored := *comment
	if comment.ParentID != nil {
		parent := *comment.ParentID
		stored.ParentID = &parent
	}

	q.t.comments[comment.ID] = stored
	q.t.commentPaths[key] = comment.ID
	return nil
}

func (q *queries) ListCommentRows(ctx context.Context, postID int64, viewerID *int64) ([]entities.CommentRow, error) {
	likes := make(map[int64]int64)
	for _, like := range q.t.commentLikes {
		likes[like.CommentID]++
	}

	rows := make([]entities.CommentRow, 0)
	for _, comment := range q.t.comments {
		if comment.PostID != postID {
			continue
		}
		row := entities.CommentRow{
			Comment:        comment,
			AuthorUsername: q.t.users[comment.AuthorID].Username,
			LikeCount:      likes[comment.ID],
		}
		if viewerID != nil {
			_, row.IsLiked = q.t.commentLikeKeys[likeKey{target: comment.ID, user: *viewerID}]
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Path != rows[j].Path {
			return rows[i].Path < rows[j].Path
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, nil
}

func (q *queries) CreatePostLike(ctx context.Context, like *entities.PostLike) error {
	if _, ok := q.t.posts[like.PostID]; !ok {
		return fkError("post_id", like.PostID)
	}
	if _, ok := q.t.users[like.UserID]; !ok {
		return fkError("user_id", like.UserID)
	}
	key := likeKey{target: like.PostID, user: like.UserID}
	if _, taken := q.t.postLikeKeys[key]; taken {
		return fmt.Errorf("%w: unique index 'unique_post_like'", interfaces.ErrUniqueConstraint)
	}

	like.ID = q.t.nextID("post_likes")
	q.stamp(&like.CreatedAt)

	q.t.postLikes[like.ID] = *like
	q.t.postLikeKeys[key] = like.ID
	return nil
}

func (q *queries) DeletePostLike(ctx context.Context, postID, userID int64) (bool, error) {
	key := likeKey{target: postID, user: userID}
	id, ok := q.t.postLikeKeys[key]
	if !ok {
		return false, nil
	}
	delete(q.t.postLikes, id)
	delete(q.t.postLikeKeys, key)
	return true, nil
}

func (q *queries) CountPostLikes(ctx context.Context, postID int64) (int64, error) {
	var n int64
	for _, like := range q.t.postLikes {
		if like.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (q *queries) CreateCommentLike(ctx context.Context, like *entities.CommentLike) error {
	if _, ok := q.t.comments[like.CommentID]; !ok {
		return fkError("comment_id", like.CommentID)
	}
	if _, ok := q.t.users[like.UserID]; !ok {
		return fkError("user_id", like.UserID)
	}
	key := likeKey{target: like.CommentID, user: like.UserID}
	if _, taken := q.t.commentLikeKeys[key]; taken {
		return fmt.Errorf("%w: unique index 'unique_comment_like'", interfaces.ErrUniqueConstraint)
	}

	like.ID = q.t.nextID("comment_likes")
	q.stamp(&like.CreatedAt)

	q.t.commentLikes[like.ID] = *like
	q.t.commentLikeKeys[key] = like.ID
	return nil
}

func (q *queries) DeleteCommentLike(ctx context.Context, commentID, userID int64) (bool, error) {
	key := likeKey{target: commentID, user: userID}
	id, ok := q.t.commentLikeKeys[key]
	if !ok {
		return false, nil
	}
	delete(q.t.commentLikes, id)
	delete(q.t.commentLikeKeys, key)
	return true, nil
}

func (q *queries) CountCommentLikes(ctx context.Context, commentID int64) (int64, error) {
	var n int64
	for _, like := range q.t.commentLikes {
		if like.CommentID == commentID {
			n++
		}
	}
	return n, nil
}

func (q *queries) PostLikesByAuthor(ctx context.Context, w interfaces.Window) ([]entities.AuthorLikeCount, error) {
	counts := make(map[int64]int64)
	for _, like := range q.t.postLikes {
		if like.CreatedAt.Before(w.Since) {
			continue
		}
		if post, ok := q.t.posts[like.PostID]; ok {
			counts[post.AuthorID]++
		}
	}
	return flattenCounts(counts), nil
}

func (q *queries) CommentLikesByAuthor(ctx context.Context, w interfaces.Window) ([]entities.AuthorLikeCount, error) {
	counts := make(map[int64]int64)
	for _, like := range q.t.commentLikes {
		if like.CreatedAt.Before(w.Since) {
			continue
		}
		if comment, ok := q.t.comments[like.CommentID]; ok {
			counts[comment.AuthorID]++
		}
	}
	return flattenCounts(counts), nil
}

func flattenCounts(counts map[int64]int64) []entities.AuthorLikeCount {
	out := make([]entities.AuthorLikeCount, 0, len(counts))
	for author, n := range counts {
		out = append(out, entities.AuthorLikeCount{AuthorID: author, Likes: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuthorID < out[j].AuthorID })
	return out
}
