package comments

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/feed-backend/internal/db/entities"
)

func row(id int64, parent *int64, path string, depth int) entities.CommentRow {
	return entities.CommentRow{
		Comment: entities.Comment{
			ID: id, PostID: 1, AuthorID: 7, ParentID: parent, Path: path, Depth: depth, Content: path,
		},
		AuthorUsername: "alice",
	}
}

func ptr(v int64) *int64 { return &v }

func TestBuildForest(t *testing.T) {
	rows := []entities.CommentRow{
		row(1, nil, "0001", 0),
		row(3, ptr(1), "0001.0001", 1),
		row(5, ptr(3), "0001.0001.0001", 2),
		row(4, ptr(1), "0001.0002", 1),
		row(2, nil, "0002", 0),
	}

	roots, orphans := BuildForest(rows)
	require.Zero(t, orphans)
	require.Len(t, roots, 2)

	assert.Equal(t, int64(1), roots[0].ID)
	assert.Equal(t, int64(2), roots[1].ID)
	require.Len(t, roots[0].Replies, 2)
	assert.Equal(t, int64(3), roots[0].Replies[0].ID)
	assert.Equal(t, int64(4), roots[0].Replies[1].ID)
	require.Len(t, roots[0].Replies[0].Replies, 1)
	assert.Equal(t, int64(5), roots[0].Replies[0].Replies[0].ID)
	assert.Equal(t, "alice", roots[0].Author.Username)
	assert.Empty(t, roots[1].Replies)
}

func TestBuildForestDropsOrphans(t *testing.T) {
	rows := []entities.CommentRow{
		row(1, nil, "0001", 0),
		row(9, ptr(8), "0002.0001", 1),
		row(10, ptr(9), "0002.0001.0001", 2),
	}

	roots, orphans := BuildForest(rows)
	assert.Equal(t, 2, orphans)
	require.Len(t, roots, 1)
	assert.Empty(t, roots[0].Replies)
}

func TestBuildForestEmpty(t *testing.T) {
	roots, orphans := BuildForest(nil)
	assert.Zero(t, orphans)
	assert.NotNil(t, roots)

	data, err := json.Marshal(roots)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestNodeJSONShape(t *testing.T) {
	roots, _ := BuildForest([]entities.CommentRow{row(1, nil, "0001", 0)})

	data, err := json.Marshal(roots[0])
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"id", "author", "content", "created_at", "depth", "path", "like_count", "is_liked", "replies"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, []any{}, fields["replies"])
}
