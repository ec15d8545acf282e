package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names returned by Connect. They also select the migration set.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DriverFor picks the SQL driver for a DSN. postgres:// and postgresql://
// select Postgres; anything else is treated as a SQLite path or DSN
// (e.g. "taskbeat.db" or "file:taskbeat.db?mode=rwc").
func DriverFor(databaseURL string) string {
	s := strings.ToLower(strings.TrimSpace(databaseURL))
	if strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Connect opens the database described by databaseURL, verifies it with a
// ping, and returns the handle plus the driver name.
func Connect(databaseURL string) (*sql.DB, string, error) {
	driver := DriverFor(databaseURL)

	conn, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// Single writer; WAL keeps readers from blocking it.
		conn.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := conn.Exec(pragma); err != nil {
				conn.Close()
				return nil, "", fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("ping %s: %w", driver, err)
	}

	return conn, driver, nil
}
