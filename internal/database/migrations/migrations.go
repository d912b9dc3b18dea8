// Package migrations manages the relational schema for both supported SQL
// dialects. Migration files are embedded so a deployed binary can always
// verify and apply its own schema.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/postgres/*.sql files/sqlite/*.sql
var migrationFiles embed.FS

// Dialect selects which migration set and driver to use.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// CheckStatus verifies that the database schema is up to date.
// Returns nil when the database is at the latest version.
func CheckStatus(db *sql.DB, dialect Dialect) error {
	m, src, err := newMigrate(db, dialect)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	defer src.Close()
	// m is not closed: closing it would close the caller's db connection.

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (run migrate first)")
		}
		return fmt.Errorf("reading database version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d (a migration failed previously)", version)
	}

	latest, err := latestVersion(src)
	if err != nil {
		return fmt.Errorf("determining latest version: %w", err)
	}

	if version < latest {
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			version, latest, latest-version)
	}
	if version > latest {
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			version, latest)
	}
	return nil
}

// Up applies all pending migrations.
func Up(db *sql.DB, dialect Dialect) error {
	m, src, err := newMigrate(db, dialect)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	defer src.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil // already at latest
		}
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB, dialect Dialect) (*migrate.Migrate, source.Driver, error) {
	var (
		driver database.Driver
		dir    string
		name   string
		err    error
	)
	switch dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
		dir, name = "files/postgres", "postgres"
	case DialectSQLite:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		dir, name = "files/sqlite", "sqlite3"
	default:
		return nil, nil, fmt.Errorf("unknown dialect: %s", dialect)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s driver: %w", dialect, err)
	}

	src, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading migration files: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, src, nil
}

// latestVersion walks the source driver to the highest available version.
func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("no migration files found")
		}
		return 0, err
	}

	for {
		next, err := src.Next(version)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return version, nil
			}
			return 0, err
		}
		version = next
	}
}
