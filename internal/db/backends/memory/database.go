package memory

import (
	"context"
	"sync"
	"time"

	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
)

// Database implements the Database interface for in-memory storage.
//
// Every statement runs under mu; a Transaction holds the write lock for its
// whole lifetime, so transactions are fully serialized.
type Database struct {
	mu        sync.RWMutex
	data      *tables
	connected bool
	now       func() time.Time
}

var _ interfaces.Database = (*Database)(nil)

// NewDatabase creates a new in-memory database
func NewDatabase() *Database {
	return &Database{
		data: newTables(),
		now:  time.Now,
	}
}

// Connect establishes a connection to the database
func (db *Database) Connect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.connected = true
	return nil
}

// Disconnect closes the database connection and drops all data
func (db *Database) Disconnect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.connected = false
	db.data = newTables()
	return nil
}

// IsHealthy checks if the database connection is healthy
func (db *Database) IsHealthy(ctx context.Context) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.connected
}

// Migrate is a no-op beyond the connection check; tables exist from construction
func (db *Database) Migrate(ctx context.Context) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if !db.connected {
		return interfaces.ErrDatabaseNotConnected
	}
	return nil
}

// Transaction executes fn within a database transaction
func (db *Database) Transaction(ctx context.Context, fn func(ctx context.Context, tx interfaces.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.connected {
		return interfaces.ErrDatabaseNotConnected
	}

	tx := NewTransaction(db)
	defer func() {
		if !tx.IsCompleted() {
			tx.Rollback()
		}
	}()

	if err := fn(ctx, db.queries()); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Clear removes all data from all tables (for testing)
func (db *Database) Clear() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.data = newTables()
}

// queries binds the statement set to the live tables. Callers must hold mu.
func (db *Database) queries() *queries {
	return &queries{t: db.data, now: db.now}
}

func read[T any](ctx context.Context, db *Database, fn func(q *queries) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	if !db.connected {
		return zero, interfaces.ErrDatabaseNotConnected
	}
	return fn(db.queries())
}

func write[T any](ctx context.Context, db *Database, fn func(q *queries) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.connected {
		return zero, interfaces.ErrDatabaseNotConnected
	}
	return fn(db.queries())
}

func exec(ctx context.Context, db *Database, fn func(q *queries) error) error {
	_, err := write(ctx, db, func(q *queries) (struct{}, error) {
		return struct{}{}, fn(q)
	})
	return err
}

func (db *Database) CreateUser(ctx context.Context, user *entities.User) error {
	return exec(ctx, db, func(q *queries) error { return q.CreateUser(ctx, user) })
}

func (db *Database) GetUser(ctx context.Context, id int64) (*entities.User, error) {
	return read(ctx, db, func(q *queries) (*entities.User, error) { return q.GetUser(ctx, id) })
}

func (db *Database) GetUsers(ctx context.Context, ids []int64) (map[int64]entities.User, error) {
	return read(ctx, db, func(q *queries) (map[int64]entities.User, error) { return q.GetUsers(ctx, ids) })
}

func (db *Database) CreatePost(ctx context.Context, post *entities.Post) error {
	return exec(ctx, db, func(q *queries) error { return q.CreatePost(ctx, post) })
}

func (db *Database) GetPost(ctx context.Context, id int64) (*entities.Post, error) {
	return read(ctx, db, func(q *queries) (*entities.Post, error) { return q.GetPost(ctx, id) })
}

func (db *Database) GetPostForUpdate(ctx context.Context, id int64) (*entities.Post, error) {
	return read(ctx, db, func(q *queries) (*entities.Post, error) { return q.GetPostForUpdate(ctx, id) })
}

func (db *Database) GetPostSummary(ctx context.Context, id int64, viewerID *int64) (*entities.PostSummary, error) {
	return read(ctx, db, func(q *queries) (*entities.PostSummary, error) { return q.GetPostSummary(ctx, id, viewerID) })
}

func (db *Database) ListPosts(ctx context.Context, pq interfaces.PostQuery) ([]entities.PostSummary, error) {
	return read(ctx, db, func(q *queries) ([]entities.PostSummary, error) { return q.ListPosts(ctx, pq) })
}

func (db *Database) DeletePost(ctx context.Context, id int64) error {
	return exec(ctx, db, func(q *queries) error { return q.DeletePost(ctx, id) })
}

func (db *Database) GetComment(ctx context.Context, id int64) (*entities.Comment, error) {
	return read(ctx, db, func(q *queries) (*entities.Comment, error) { return q.GetComment(ctx, id) })
}

func (db *Database) CountSiblings(ctx context.Context, postID int64, parentID *int64) (int, error) {
	return read(ctx, db, func(q *queries) (int, error) { return q.CountSiblings(ctx, postID, parentID) })
}

func (db *Database) CreateComment(ctx context.Context, comment *entities.Comment) error {
	return exec(ctx, db, func(q *queries) error { return q.CreateComment(ctx, comment) })
}

func (db *Database) ListCommentRows(ctx context.Context, postID int64, viewerID *int64) ([]entities.CommentRow, error) {
	return read(ctx, db, func(q *queries) ([]entities.CommentRow, error) { return q.ListCommentRows(ctx, postID, viewerID) })
}

func (db *Database) CreatePostLike(ctx context.Context, like *entities.PostLike) error {
	return exec(ctx, db, func(q *queries) error { return q.CreatePostLike(ctx, like) })
}

func (db *Database) DeletePostLike(ctx context.Context, postID, userID int64) (bool, error) {
	return write(ctx, db, func(q *queries) (bool, error) { return q.DeletePostLike(ctx, postID, userID) })
}

func (db *Database) CountPostLikes(ctx context.Context, postID int64) (int64, error) {
	return read(ctx, db, func(q *queries) (int64, error) { return q.CountPostLikes(ctx, postID) })
}

func (db *Database) CreateCommentLike(ctx context.Context, like *entities.CommentLike) error {
	return exec(ctx, db, func(q *queries) error { return q.CreateCommentLike(ctx, like) })
}

func (db *Database) DeleteCommentLike(ctx context.Context, commentID, userID int64) (bool, error) {
	return write(ctx, db, func(q *queries) (bool, error) { return q.DeleteCommentLike(ctx, commentID, userID) })
}

func (db *Database) CountCommentLikes(ctx context.Context, commentID int64) (int64, error) {
	return read(ctx, db, func(q *queries) (int64, error) { return q.CountCommentLikes(ctx, commentID) })
}

func (db *Database) PostLikesByAuthor(ctx context.Context, w interfaces.Window) ([]entities.AuthorLikeCount, error) {
	return read(ctx, db, func(q *queries) ([]entities.AuthorLikeCount, error) { return q.PostLikesByAuthor(ctx, w) })
}

func (db *Database) CommentLikesByAuthor(ctx context.Context, w interfaces.Window) ([]entities.AuthorLikeCount, error) {
	return read(ctx, db, func(q *queries) ([]entities.AuthorLikeCount, error) { return q.CommentLikesByAuthor(ctx, w) })
}
