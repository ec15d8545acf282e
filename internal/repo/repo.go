// Package repo holds the SQL persistence layer. Queries are written with
// Postgres-style $N placeholders and rebound for SQLite at execution time.
package repo

import (
	"regexp"

	"github.com/taskbeat/taskbeat/internal/db"
)

var placeholderRe = regexp.MustCompile(`\$\d+`)

// rebind converts $N placeholders to ? for drivers with ordinal markers.
// Arguments are always passed in $1..$N order, so a plain substitution holds.
func rebind(driver, query string) string {
	if driver != db.DriverSQLite {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

// nullString maps a nil or empty *string to SQL NULL.
func nullString(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
