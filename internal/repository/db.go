package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string // postgres; takes precedence over SQLitePath
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Store owns the database handle shared by the repositories.
type Store struct {
	drv    *entsql.Driver
	pool   *pgxpool.Pool // nil on SQLite
	logger *slog.Logger
}

// Open connects to Postgres when a DSN is configured, SQLite otherwise.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case cfg.DSN != "":
		return OpenPostgres(ctx, cfg, logger)
	case cfg.SQLitePath != "":
		return OpenSQLite(ctx, cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("no database configured: set DB_URL or SQLITE_PATH")
	}
}

// OpenPostgres creates a pgx pool and wraps it for ent's SQL driver.
func OpenPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "receipt-verifier"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for ent
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &Store{drv: entsql.OpenDB(dialect.Postgres, db), pool: pool, logger: logger}, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "dialect", dialect.SQLite, "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection keeps the pragmas in effect and serializes writers
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return &Store{drv: entsql.OpenDB(dialect.SQLite, db), logger: logger}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.drv.DB() }

// Dialect returns dialect.Postgres or dialect.SQLite.
func (s *Store) Dialect() string { return s.drv.Dialect() }

func (s *Store) builder() *entsql.DialectBuilder { return entsql.Dialect(s.drv.Dialect()) }

// Close closes the database connections gracefully
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.logger.Info("closing database connections")
	if err := s.drv.Close(); err != nil {
		s.logger.Error("failed to close database", "error", err)
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	s.logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var err error
	if s.pool != nil {
		err = s.pool.Ping(ctx)
	} else {
		err = s.DB().PingContext(ctx)
	}
	if err != nil {
		return err
	}
	s.logger.Debug("database ping successful")
	return nil
}
