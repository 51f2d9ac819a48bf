package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
)

func TestNewDatabase(t *testing.T) {
	t.Run("defaults to memory", func(t *testing.T) {
		db, err := NewDatabase(nil, nil)
		require.NoError(t, err)
		assert.NotNil(t, db)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		_, err := NewDatabase(&Config{Type: "postgres"}, nil)
		assert.Error(t, err)
	})

	t.Run("force in-memory overrides type", func(t *testing.T) {
		db, err := NewDatabase(&Config{Type: "postgres", UseInMemory: true}, nil)
		require.NoError(t, err)
		require.NoError(t, ConnectAndMigrate(context.Background(), db))
		assert.True(t, db.IsHealthy(context.Background()))
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := NewDatabase(&Config{Type: "sqlite"}, nil)
		assert.Error(t, err)
	})
}

func TestInMemoryDatabase(t *testing.T) {
	ctx := context.Background()

	db := NewInMemoryDatabase()
	require.NoError(t, ConnectAndMigrate(ctx, db))
	defer db.Disconnect(ctx)

	require.True(t, db.IsHealthy(ctx))

	t.Run("Constraint Validation", func(t *testing.T) {
		testConstraintValidation(t, ctx, db)
	})

	t.Run("Transactions", func(t *testing.T) {
		testTransactions(t, ctx, db)
	})
}

func testConstraintValidation(t *testing.T, ctx context.Context, db interfaces.Database) {
	user := &entities.User{Username: "constraint"}
	require.NoError(t, db.CreateUser(ctx, user))

	err := db.CreateUser(ctx, &entities.User{Username: "constraint"})
	assert.ErrorIs(t, err, interfaces.ErrUniqueConstraint)

	post := &entities.Post{AuthorID: user.ID, Content: "valid author"}
	require.NoError(t, db.CreatePost(ctx, post))

	err = db.CreatePost(ctx, &entities.Post{AuthorID: 9999, Content: "missing author"})
	assert.ErrorIs(t, err, interfaces.ErrForeignKeyConstraint)

	require.NoError(t, db.CreatePostLike(ctx, &entities.PostLike{PostID: post.ID, UserID: user.ID}))
	err = db.CreatePostLike(ctx, &entities.PostLike{PostID: post.ID, UserID: user.ID})
	assert.ErrorIs(t, err, interfaces.ErrUniqueConstraint)
}

func testTransactions(t *testing.T, ctx context.Context, db interfaces.Database) {
	err := db.Transaction(ctx, func(ctx context.Context, tx interfaces.Queries) error {
		return tx.CreateUser(ctx, &entities.User{Username: "committed"})
	})
	require.NoError(t, err)

	errForced := errors.New("forced")
	var rolledBack entities.User
	err = db.Transaction(ctx, func(ctx context.Context, tx interfaces.Queries) error {
		rolledBack = entities.User{Username: "rolled-back"}
		if err := tx.CreateUser(ctx, &rolledBack); err != nil {
			return err
		}
		return errForced
	})
	assert.ErrorIs(t, err, errForced)

	_, err = db.GetUser(ctx, rolledBack.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	// the committed username is still taken, the rolled back one is free
	assert.ErrorIs(t, db.CreateUser(ctx, &entities.User{Username: "committed"}), interfaces.ErrUniqueConstraint)
	assert.NoError(t, db.CreateUser(ctx, &entities.User{Username: "rolled-back"}))
}
