package comments

import (
	"time"

	"github.com/leafsii/feed-backend/internal/db/entities"
)

// Node is one comment in a reconstructed thread
type Node struct {
	ID        int64           `json:"id"`
	Author    entities.Author `json:"author"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	Depth     int             `json:"depth"`
	Path      string          `json:"path"`
	LikeCount int64           `json:"like_count"`
	IsLiked   bool            `json:"is_liked"`
	Replies   []*Node         `json:"replies"`
}

// BuildForest rebuilds the comment forest from rows ordered by path. It is a
// single pass: a parent always sorts before its descendants, so it is already
// indexed when a child arrives. Rows whose parent was not seen are dropped
// along with their descendants and counted in orphans.
func BuildForest(rows []entities.CommentRow) (roots []*Node, orphans int) {
	arena := make([]Node, len(rows))
	index := make(map[int64]int, len(rows))
	roots = make([]*Node, 0)

	for i := range rows {
		row := &rows[i]
		arena[i] = Node{
			ID:        row.ID,
			Author:    entities.Author{ID: row.AuthorID, Username: row.AuthorUsername},
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
			Depth:     row.Depth,
			Path:      row.Path,
			LikeCount: row.LikeCount,
			IsLiked:   row.IsLiked,
			Replies:   []*Node{},
		}
		node := &arena[i]

		if row.ParentID == nil {
			roots = append(roots, node)
			index[row.ID] = i
			continue
		}

		parent, ok := index[*row.ParentID]
		if !ok {
			orphans++
			continue
		}
		arena[parent].Replies = append(arena[parent].Replies, node)
		index[row.ID] = i
	}

	return roots, orphans
}

// Walk visits the forest in pre-order
func Walk(roots []*Node, fn func(*Node)) {
	for _, n := range roots {
		fn(n)
		Walk(n.Replies, fn)
	}
}
