package karma

import (
	"sort"

	"github.com/leafsii/feed-backend/internal/db/entities"
)

// Like weights
const (
	PostLikeKarma    int64 = 5
	CommentLikeKarma int64 = 1
)

// Entry is one ranked user
type Entry struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Karma    int64  `json:"karma"`
	Rank     int    `json:"rank"`
}

// Totals merges the per-author like counts into weighted karma totals.
// Authors whose total is not positive are left out.
func Totals(postLikes, commentLikes []entities.AuthorLikeCount) map[int64]int64 {
	totals := make(map[int64]int64, len(postLikes)+len(commentLikes))
	for _, c := range postLikes {
		totals[c.AuthorID] += c.Likes * PostLikeKarma
	}
	for _, c := range commentLikes {
		totals[c.AuthorID] += c.Likes * CommentLikeKarma
	}
	for id, total := range totals {
		if total <= 0 {
			delete(totals, id)
		}
	}
	return totals
}

// Rank orders totals by karma descending, then user id ascending, keeps the
// first limit users and numbers them from 1. Users missing from users are
// skipped before ranking so ranks stay contiguous.
func Rank(totals map[int64]int64, users map[int64]entities.User, limit int) []Entry {
	entries := make([]Entry, 0, len(totals))
	for id, total := range totals {
		user, ok := users[id]
		if !ok {
			continue
		}
		entries = append(entries, Entry{ID: id, Username: user.Username, Karma: total})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Karma != entries[j].Karma {
			return entries[i].Karma > entries[j].Karma
		}
		return entries[i].ID < entries[j].ID
	})

	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
