package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Migrate applies every pending up migration for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run up migrations: %w", err)
	}
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	s.logger.Info("database migrated", "dialect", s.Dialect(), "version", v, "dirty", dirty)
	return nil
}

// MigrationVersion reports the applied schema version; 0 means no migration has run.
func (s *Store) MigrationVersion(ctx context.Context) (uint, bool, error) {
	m, err := s.migrator()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// migrator builds a migrate instance over the store's own connection. It is
// never closed: closing it would close the shared *sql.DB.
func (s *Store) migrator() (*migrate.Migrate, error) {
	var (
		dir string
		drv database.Driver
		err error
	)
	switch s.Dialect() {
	case dialect.Postgres:
		dir = "migrations/postgres"
		drv, err = migratepgx.WithInstance(s.DB(), &migratepgx.Config{})
	case dialect.SQLite:
		dir = "migrations/sqlite"
		drv, err = migratesqlite.WithInstance(s.DB(), &migratesqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported dialect %q", s.Dialect())
	}
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, s.Dialect(), drv)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}
