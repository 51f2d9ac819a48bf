package interfaces

import "context"

// Database represents the main database interface
type Database interface {
	Queries

	// Connect establishes a connection to the database
	Connect(ctx context.Context) error

	// Disconnect closes the database connection
	Disconnect(ctx context.Context) error

	// IsHealthy checks if the database connection is healthy
	IsHealthy(ctx context.Context) bool

	// Migrate creates tables and applies schema changes
	Migrate(ctx context.Context) error

	// Transaction executes fn within a database transaction. The transaction
	// commits when fn returns nil and rolls back fully otherwise.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Queries) error) error
}
