package interfaces

import (
	"errors"
	"time"
)

// PostQuery selects a page of the post feed
type PostQuery struct {
	ViewerID *int64 // annotates is_liked when set
	Limit    int
	Offset   int
}

// Window bounds a scan of like events by creation time (inclusive lower bound)
type Window struct {
	Since time.Time
}

// Common database errors
var (
	ErrNotFound             = errors.New("record not found")
	ErrUniqueConstraint     = errors.New("unique constraint violation")
	ErrForeignKeyConstraint = errors.New("foreign key constraint violation")
	ErrInvalidQuery         = errors.New("invalid query")
	ErrTransactionCompleted = errors.New("transaction already completed")
	ErrDatabaseNotConnected = errors.New("database not connected")
)

// DatabaseError wraps database-specific errors
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Wrap annotates err with the failing operation, leaving nil untouched
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DatabaseError{Op: op, Err: err}
}
