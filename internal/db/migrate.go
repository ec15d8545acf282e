package db

import (
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies all pending migrations (Up) to the database at databaseURL,
// using the embedded SQL set matching its driver. The migration connection is
// private and closed before returning. Returns nil if migrations were applied
// or if already at the latest version (ErrNoChange).
func Migrate(databaseURL string) error {
	driver := DriverFor(databaseURL)

	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL, driver))
	if err != nil {
		return fmt.Errorf("migrate new: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// migrateURL rewrites a DSN into the scheme-prefixed URL golang-migrate
// expects. Postgres URLs pass through; SQLite paths lose the optional file:
// prefix and query string and gain the sqlite:// scheme.
func migrateURL(databaseURL, driver string) string {
	if driver == DriverPostgres {
		return databaseURL
	}
	path := strings.TrimPrefix(strings.TrimSpace(databaseURL), "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return "sqlite://" + path
}
