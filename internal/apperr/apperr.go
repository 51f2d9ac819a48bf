// Package apperr defines the domain error taxonomy shared by the feed
// services and mapped onto HTTP responses by the api package.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindSelfLike
	KindNotLiked
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindSelfLike:
		return "self_like"
	case KindNotLiked:
		return "not_liked"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is a classified domain failure. Code is stable and machine readable.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a classified error
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation builds a validation error carrying a caller-facing message
func Validation(code, format string, args ...any) *Error {
	return New(KindValidation, code, fmt.Sprintf(format, args...))
}

var (
	ErrParentPostMismatch = New(KindValidation, "PARENT_POST_MISMATCH", "parent comment must belong to the same post")
	ErrParentNotFound     = New(KindValidation, "PARENT_NOT_FOUND", "parent comment does not exist")
	ErrSiblingLimit       = New(KindValidation, "SIBLING_LIMIT_REACHED", "too many replies at this level")
	ErrEmptyContent       = New(KindValidation, "EMPTY_CONTENT", "content must not be empty")
	ErrContentTooLong     = New(KindValidation, "CONTENT_TOO_LONG", "content is too long")
	ErrInvalidWindow      = New(KindValidation, "INVALID_WINDOW", "window must be a positive number of hours")
	ErrInvalidLimit       = New(KindValidation, "INVALID_LIMIT", "limit must be positive")

	ErrPostNotFound    = New(KindNotFound, "POST_NOT_FOUND", "post not found")
	ErrCommentNotFound = New(KindNotFound, "COMMENT_NOT_FOUND", "comment not found")
	ErrUserNotFound    = New(KindNotFound, "USER_NOT_FOUND", "user not found")

	ErrSelfLike      = New(KindSelfLike, "SELF_LIKE", "you cannot like your own content")
	ErrDuplicateLike = New(KindConflict, "ALREADY_LIKED", "already liked")
	ErrNotLiked      = New(KindNotLiked, "NOT_LIKED", "not liked")

	ErrUnauthenticated = New(KindUnauthorized, "UNAUTHENTICATED", "authentication required")
	ErrForbidden       = New(KindForbidden, "FORBIDDEN", "not allowed")
)

// As extracts the classified error from err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, KindInternal when unclassified
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
