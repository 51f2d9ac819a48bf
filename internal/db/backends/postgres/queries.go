package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
)

type queries struct {
	q querier
}

var _ interfaces.Queries = (*queries)(nil)

// nullTime lets the column default apply to zero timestamps
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (q *queries) CreateUser(ctx context.Context, user *entities.User) error {
	if user.ID == 0 {
		err := q.q.QueryRow(ctx,
			`INSERT INTO users (username, created_at) VALUES ($1, COALESCE($2, now()))
			 RETURNING id, created_at`,
			user.Username, nullTime(user.CreatedAt),
		).Scan(&user.ID, &user.CreatedAt)
		return interfaces.Wrap("create user", translate(err))
	}

	err := q.q.QueryRow(ctx,
		`INSERT INTO users (id, username, created_at) VALUES ($1, $2, COALESCE($3, now()))
		 RETURNING created_at`,
		user.ID, user.Username, nullTime(user.CreatedAt),
	).Scan(&user.CreatedAt)
	if err != nil {
		return interfaces.Wrap("create user", translate(err))
	}
	_, err = q.q.Exec(ctx,
		`SELECT setval(pg_get_serial_sequence('users', 'id'), GREATEST((SELECT MAX(id) FROM users), 1))`)
	return interfaces.Wrap("create user", translate(err))
}

func (q *queries) GetUser(ctx context.Context, id int64) (*entities.User, error) {
	rows, err := q.q.Query(ctx, `SELECT id, username, created_at FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, interfaces.Wrap("get user", translate(err))
	}
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.User])
	if err != nil {
		return nil, interfaces.Wrap("get user", translate(err))
	}
	return &user, nil
}

func (q *queries) GetUsers(ctx context.Context, ids []int64) (map[int64]entities.User, error) {
	out := make(map[int64]entities.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.q.Query(ctx, `SELECT id, username, created_at FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, interfaces.Wrap("get users", translate(err))
	}
	users, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.User])
	if err != nil {
		return nil, interfaces.Wrap("get users", translate(err))
	}
	for _, user := range users {
		out[user.ID] = user
	}
	return out, nil
}

func (q *queries) CreatePost(ctx context.Context, post *entities.Post) error {
	err := q.q.QueryRow(ctx,
		`INSERT INTO posts (author_id, content, created_at, updated_at)
		 VALUES ($1, $2, COALESCE($3, now()), COALESCE($4, $3, now()))
		 RETURNING id, created_at, updated_at`,
		post.AuthorID, post.Content, nullTime(post.CreatedAt), nullTime(post.UpdatedAt),
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	return interfaces.Wrap("create post", translate(err))
}

const postColumns = `id, author_id, content, created_at, updated_at`

func (q *queries) getPost(ctx context.Context, op, sql string, id int64) (*entities.Post, error) {
	rows, err := q.q.Query(ctx, sql, id)
	if err != nil {
		return nil, interfaces.Wrap(op, translate(err))
	}
	post, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.Post])
	if err != nil {
		return nil, interfaces.Wrap(op, translate(err))
	}
	return &post, nil
}

func (q *queries) GetPost(ctx context.Context, id int64) (*entities.Post, error) {
	return q.getPost(ctx, "get post", `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
}

func (q *queries) GetPostForUpdate(ctx context.Context, id int64) (*entities.Post, error) {
	return q.getPost(ctx, "lock post", `SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`, id)
}

const postSummarySelect = `
SELECT p.id, p.author_id, p.content, p.created_at, p.updated_at, u.username,
       (SELECT COUNT(*) FROM post_likes pl WHERE pl.post_id = p.id),
       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
       EXISTS (SELECT 1 FROM post_likes pl WHERE pl.post_id = p.id AND pl.user_id = $1)
FROM posts p
JOIN users u ON u.id = p.author_id`

func scanPostSummary(row pgx.CollectableRow) (entities.PostSummary, error) {
	var s entities.PostSummary
	err := row.Scan(
		&s.ID, &s.AuthorID, &s.Content, &s.CreatedAt, &s.UpdatedAt, &s.Author.Username,
		&s.LikeCount, &s.CommentCount, &s.IsLiked,
	)
	s.Author.ID = s.AuthorID
	return s, err
}

func (q *queries) GetPostSummary(ctx context.Context, id int64, viewerID *int64) (*entities.PostSummary, error) {
	rows, err := q.q.Query(ctx, postSummarySelect+` WHERE p.id = $2`, viewerID, id)
	if err != nil {
		return nil, interfaces.Wrap("get post summary", translate(err))
	}
	summary, err := pgx.CollectExactlyOneRow(rows, scanPostSummary)
	if err != nil {
		return nil, interfaces.Wrap("get post summary", translate(err))
	}
	return &summary, nil
}

func (q *queries) ListPosts(ctx context.Context, pq interfaces.PostQuery) ([]entities.PostSummary, error) {
	var limit *int
	if pq.Limit > 0 {
		limit = &pq.Limit
	}
	offset := max(pq.Offset, 0)

	rows, err := q.q.Query(ctx,
		postSummarySelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT $2 OFFSET $3`,
		pq.ViewerID, limit, offset,
	)
	if err != nil {
		return nil, interfaces.Wrap("list posts", translate(err))
	}
	posts, err := pgx.CollectRows(rows, scanPostSummary)
	return posts, interfaces.Wrap("list posts", translate(err))
}

func (q *queries) DeletePost(ctx context.Context, id int64) error {
	tag, err := q.q.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return interfaces.Wrap("delete post", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return interfaces.Wrap("delete post", interfaces.ErrNotFound)
	}
	return nil
}

const commentColumns = `id, post_id, author_id, parent_id, content, path, depth, created_at, updated_at`

func (q *queries) GetComment(ctx context.Context, id int64) (*entities.Comment, error) {
	rows, err := q.q.Query(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	if err != nil {
		return nil, interfaces.Wrap("get comment", translate(err))
	}
	comment, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.Comment])
	if err != nil {
		return nil, interfaces.Wrap("get comment", translate(err))
	}
	return &comment, nil
}

func (q *queries) CountSiblings(ctx context.Context, postID int64, parentID *int64) (int, error) {
	var n int
	err := q.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = $1 AND parent_id IS NOT DISTINCT FROM $2`,
		postID, parentID,
	).Scan(&n)
	return n, interfaces.Wrap("count siblings", translate(err))
}

func (q *queries) CreateComment(ctx context.Context, comment *entities.Comment) error {
	err := q.q.QueryRow(ctx,
		`INSERT INTO comments (post_id, author_id, parent_id, content, path, depth, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()), COALESCE($8, $7, now()))
		 RETURNING id, created_at, updated_at`,
		comment.PostID, comment.AuthorID, comment.ParentID, comment.Content, comment.Path, comment.Depth,
		nullTime(comment.CreatedAt), nullTime(comment.UpdatedAt),
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
	return interfaces.Wrap("create comment", translate(err))
}

func (q *queries) ListCommentRows(ctx context.Context, postID int64, viewerID *int64) ([]entities.CommentRow, error) {
	rows, err := q.q.Query(ctx, `
SELECT c.id, c.post_id, c.author_id, c.parent_id, c.content, c.path, c.depth, c.created_at, c.updated_at,
       u.username,
       (SELECT COUNT(*) FROM comment_likes cl WHERE cl.comment_id = c.id),
       EXISTS (SELECT 1 FROM comment_likes cl WHERE cl.comment_id = c.id AND cl.user_id = $2)
FROM comments c
JOIN users u ON u.id = c.author_id
WHERE c.post_id = $1
ORDER BY c.path, c.id`, postID, viewerID)
	if err != nil {
		return nil, interfaces.Wrap("list comments", translate(err))
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entities.CommentRow, error) {
		var r entities.CommentRow
		err := row.Scan(
			&r.ID, &r.PostID, &r.AuthorID, &r.ParentID, &r.Content, &r.Path, &r.Depth, &r.CreatedAt, &r.UpdatedAt,
			&r.AuthorUsername, &r.LikeCount, &r.IsLiked,
		)
		return r, err
	})
	return out, interfaces.Wrap("list comments", translate(err))
}

func (q *queries) CreatePostLike(ctx context.Context, like *entities.PostLike) error {
	err := q.q.QueryRow(ctx,
		`INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, COALESCE($3, now()))
		 RETURNING id, created_at`,
		like.PostID, like.UserID, nullTime(like.CreatedAt),
	).Scan(&like.ID, &like.CreatedAt)
	return interfaces.Wrap("create post like", translate(err))
}

func (q *queries) DeletePostLike(ctx context.Context, postID, userID int64) (bool, error) {
	tag, err := q.q.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, interfaces.Wrap("delete post like", translate(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (q *queries) CountPostLikes(ctx context.Context, postID int64) (int64, error) {
	var n int64
	err := q.q.QueryRow(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id = $1`, postID).Scan(&n)
	return n, interfaces.Wrap("count post likes", translate(err))
}

func (q *queries) CreateCommentLike(ctx context.Context, like *entities.CommentLike) error {
	err := q.q.QueryRow(ctx,
		`INSERT INTO comment_likes (comment_id, user_id, created_at) VALUES ($1, $2, COALESCE($3, now()))
		 RETURNING id, created_at`,
		like.CommentID, like.UserID, nullTime(like.CreatedAt),
	).Scan(&like.ID, &like.CreatedAt)
	return interfaces.Wrap("create comment like", translate(err))
}

func (q *queries) DeleteCommentLike(ctx context.Context, commentID, userID int64) (bool, error) {
	tag, err := q.q.Exec(ctx, `DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
	if err != nil {
		return false, interfaces.Wrap("delete comment like", translate(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (q *queries) CountCommentLikes(ctx context.Context, commentID int64) (int64, error) {
	var n int64
	err := q.q.QueryRow(ctx, `SELECT COUNT(*) FROM comment_likes WHERE comment_id = $1`, commentID).Scan(&n)
	return n, interfaces.Wrap("count comment likes", translate(err))
}

func (q *queries) likesByAuthor(ctx context.Context, op, sql string, w interfaces.Window) ([]entities.AuthorLikeCount, error) {
	rows, err := q.q.Query(ctx, sql, w.Since)
	if err != nil {
		return nil, interfaces.Wrap(op, translate(err))
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[entities.AuthorLikeCount])
	return out, interfaces.Wrap(op, translate(err))
}

func (q *queries) PostLikesByAuthor(ctx context.Context, w interfaces.Window) ([]entities.AuthorLikeCount, error) {
	return q.likesByAuthor(ctx, "post likes by author", `
SELECT p.author_id, COUNT(*)
FROM post_likes pl
JOIN posts p ON p.id = pl.post_id
WHERE pl.created_at >= $1
GROUP BY p.author_id
ORDER BY p.author_id`, w)
}

func (q *queries) CommentLikesByAuthor(ctx context.Context, w interfaces.Window) ([]entities.AuthorLikeCount, error) {
	return q.likesByAuthor(ctx, "comment likes by author", `
SELECT c.author_id, COUNT(*)
FROM comment_likes cl
JOIN comments c ON c.id = cl.comment_id
WHERE cl.created_at >= $1
GROUP BY c.author_id
ORDER BY c.author_id`, w)
}
