package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/db/backends/memory"
	"github.com/leafsii/feed-backend/internal/db/backends/postgres"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
)

// Config holds database configuration
type Config struct {
	Type        string // "memory", "postgres"
	DSN         string // Data Source Name / Connection String
	UseInMemory bool   // Force in-memory usage
	MaxConns    int32  // Maximum pool connections (postgres)
}

// NewDatabase creates a new database instance based on configuration
func NewDatabase(config *Config, logger *zap.SugaredLogger) (interfaces.Database, error) {
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if config.Type == "" {
		config.Type = "memory"
	}

	if config.UseInMemory {
		logger.Info("Using in-memory database")
		return memory.NewDatabase(), nil
	}

	switch config.Type {
	case "memory":
		logger.Info("Using in-memory database")
		return memory.NewDatabase(), nil
	case "postgres":
		if config.DSN == "" {
			return nil, fmt.Errorf("postgres database requires a DSN")
		}
		logger.Info("Using postgres database")
		return postgres.NewDatabase(postgres.Config{DSN: config.DSN, MaxConns: config.MaxConns}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// MustNewDatabase creates a new database instance and panics on error
func MustNewDatabase(config *Config, logger *zap.SugaredLogger) interfaces.Database {
	db, err := NewDatabase(config, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to create database: %v", err))
	}
	return db
}

// NewInMemoryDatabase creates a new in-memory database instance
func NewInMemoryDatabase() interfaces.Database {
	return memory.NewDatabase()
}

// ConnectAndMigrate connects to the database and runs migrations
func ConnectAndMigrate(ctx context.Context, db interfaces.Database) error {
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if !db.IsHealthy(ctx) {
		return fmt.Errorf("database health check failed")
	}

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}
