package comments

import (
	"fmt"
	"strings"

	"github.com/leafsii/feed-backend/internal/apperr"
	"github.com/leafsii/feed-backend/internal/db/entities"
)

const (
	// SegmentWidth is the zero-padded width of one path segment
	SegmentWidth = 4
	// MaxSiblings is the largest ordinal a segment can hold. Beyond it
	// lexicographic order would no longer match creation order.
	MaxSiblings = 9999
	// Separator joins path segments
	Separator = "."
)

// Segment formats a 1-based sibling ordinal
func Segment(ordinal int) string {
	return fmt.Sprintf("%0*d", SegmentWidth, ordinal)
}

// NextPath returns the path and depth of a new comment that already has
// siblings older siblings under parent (nil for a root comment).
func NextPath(parent *entities.Comment, siblings int) (string, int, error) {
	ordinal := siblings + 1
	if ordinal > MaxSiblings {
		return "", 0, apperr.ErrSiblingLimit
	}

	segment := Segment(ordinal)
	if parent == nil {
		return segment, 0, nil
	}
	return parent.Path + Separator + segment, parent.Depth + 1, nil
}

// ValidPath reports whether path is well formed for depth: depth+1 segments
// of SegmentWidth digits each, none of them zero.
func ValidPath(path string, depth int) bool {
	if depth < 0 {
		return false
	}
	segments := strings.Split(path, Separator)
	if len(segments) != depth+1 {
		return false
	}
	for _, seg := range segments {
		if len(seg) != SegmentWidth || seg == strings.Repeat("0", SegmentWidth) {
			return false
		}
		for _, r := range seg {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// ParentPath strips the last segment; ok is false for root paths
func ParentPath(path string) (string, bool) {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return "", false
	}
	return path[:i], true
}
