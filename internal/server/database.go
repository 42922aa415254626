package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	repo "github.com/joseph-ayodele/receipt-verifier/internal/repository"
)

// ConnectDB opens the record store described by cfg and brings its schema up to date.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	backend := "postgres"
	if cfg.DSN == "" {
		backend = "sqlite"
	}
	logger.Info("connecting to database", "backend", backend)
	store, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.DSN,
		SQLitePath:       cfg.SQLitePath,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		store.Close()
		return nil, err
	}

	logger.Info("successfully connected to database")
	return store, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, store *repo.Store, logger *slog.Logger, timeout time.Duration) error {
	logger.Debug("pinging database")
	if err := store.HealthCheck(ctx, timeout); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// CloseDB closes the database connections gracefully
func CloseDB(store *repo.Store, logger *slog.Logger) {
	logger.Info("closing database connections")
	if store != nil {
		store.Close()
	}
	logger.Info("database connections closed")
}
