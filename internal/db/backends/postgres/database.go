package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/db/interfaces"
	"github.com/leafsii/feed-backend/internal/db/migrations"
)

// Config holds the pool settings for the postgres backend
type Config struct {
	DSN      string
	MaxConns int32
}

// Database implements the Database interface on a pgx connection pool
type Database struct {
	queries

	cfg    Config
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger
}

var _ interfaces.Database = (*Database)(nil)

// NewDatabase creates an unconnected postgres database
func NewDatabase(cfg Config, logger *zap.SugaredLogger) *Database {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Database{
		queries: queries{q: disconnected{}},
		cfg:     cfg,
		logger:  logger,
	}
}

// Connect establishes a connection to the database
func (db *Database) Connect(ctx context.Context) error {
	if db.cfg.DSN == "" {
		return fmt.Errorf("postgres dsn is empty")
	}

	poolCfg, err := pgxpool.ParseConfig(db.cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse postgres dsn: %w", err)
	}
	if db.cfg.MaxConns > 0 {
		poolCfg.MaxConns = db.cfg.MaxConns
	}
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	poolCfg.ConnConfig.StatementCacheCapacity = 256

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	db.pool = pool
	db.queries = queries{q: pool}
	db.logger.Infow("Connected to postgres", "max_conns", poolCfg.MaxConns)
	return nil
}

// Disconnect closes the pool
func (db *Database) Disconnect(ctx context.Context) error {
	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
	db.queries = queries{q: disconnected{}}
	return nil
}

// IsHealthy pings the database
func (db *Database) IsHealthy(ctx context.Context) bool {
	if db.pool == nil {
		return false
	}
	return db.pool.Ping(ctx) == nil
}

// Migrate applies the embedded goose migrations
func (db *Database) Migrate(ctx context.Context) error {
	if db.pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err == nil {
		db.logger.Infow("Database migrated", "version", version)
	}
	return nil
}

// Transaction executes fn in a read-committed transaction. Row locks taken
// through GetPostForUpdate are held until fn returns.
func (db *Database) Transaction(ctx context.Context, fn func(ctx context.Context, tx interfaces.Queries) error) error {
	if db.pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return interfaces.Wrap("begin", translate(err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return interfaces.Wrap("commit", translate(err))
	}
	return nil
}

// Pool exposes the underlying pool for callers that need raw access
func (db *Database) Pool() *pgxpool.Pool {
	return db.pool
}

// querier is the statement surface shared by *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// disconnected fails every statement until Connect succeeds
type disconnected struct{}

func (disconnected) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, interfaces.ErrDatabaseNotConnected
}

func (disconnected) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, interfaces.ErrDatabaseNotConnected
}

func (disconnected) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{err: interfaces.ErrDatabaseNotConnected}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// translate maps driver errors onto the interfaces sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return interfaces.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", interfaces.ErrUniqueConstraint, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", interfaces.ErrForeignKeyConstraint, pgErr.ConstraintName)
		case "22P02", "42601":
			return fmt.Errorf("%w: %s", interfaces.ErrInvalidQuery, pgErr.Message)
		}
	}
	return err
}
