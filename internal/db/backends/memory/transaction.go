package memory

import (
	"sync"

	"github.com/leafsii/feed-backend/internal/db/interfaces"
)

// Transaction represents an in-memory transaction. It snapshots the tables
// on creation and restores the snapshot on rollback. The owning Database
// holds its write lock for the transaction's lifetime.
type Transaction struct {
	mu         sync.Mutex
	db         *Database
	snapshot   *tables
	committed  bool
	rolledBack bool
}

// NewTransaction creates a new in-memory transaction. Callers must hold db.mu.
func NewTransaction(db *Database) *Transaction {
	return &Transaction{
		db:       db,
		snapshot: db.data.clone(),
	}
}

// Commit commits the transaction
func (tx *Transaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed || tx.rolledBack {
		return interfaces.ErrTransactionCompleted
	}

	tx.committed = true
	tx.snapshot = nil
	return nil
}

// Rollback restores the tables to the state at transaction start
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed || tx.rolledBack {
		return interfaces.ErrTransactionCompleted
	}

	// Restore in place so the queries handle given to fn sees the rollback too
	*tx.db.data = *tx.snapshot

	tx.rolledBack = true
	return nil
}

// IsCompleted returns true if the transaction has been committed or rolled back
func (tx *Transaction) IsCompleted() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	return tx.committed || tx.rolledBack
}
