// Package migrations applies the embedded schema migrations.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var migrationFiles embed.FS

// Dialects with a migration set.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Up runs all pending migrations for the given dialect.
// An already up-to-date database is not an error.
func Up(db *sql.DB, dialect string) error {
	m, drv, err := newMigrate(db, dialect)
	if err != nil {
		return err
	}
	defer release(dialect, drv)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Version reports the current schema version and whether a previous migration
// left the database dirty. A database with no migrations applied reports 0.
func Version(db *sql.DB, dialect string) (uint, bool, error) {
	m, drv, err := newMigrate(db, dialect)
	if err != nil {
		return 0, false, err
	}
	defer release(dialect, drv)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get database version: %w", err)
	}
	return version, dirty, nil
}

func newMigrate(db *sql.DB, dialect string) (*migrate.Migrate, migratedb.Driver, error) {
	sourceDriver, err := iofs.New(migrationFiles, dialect)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	var drv migratedb.Driver
	switch dialect {
	case Postgres:
		// WithInstance would close db along with the driver; a dedicated
		// connection can be released on its own.
		var conn *sql.Conn
		conn, err = db.Conn(context.Background())
		if err == nil {
			drv, err = migratepg.WithConnection(context.Background(), conn, &migratepg.Config{})
			if err != nil {
				conn.Close()
			}
		}
	case SQLite:
		drv, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	default:
		err = fmt.Errorf("unknown dialect %q", dialect)
	}
	if err != nil {
		sourceDriver.Close()
		return nil, nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dialect, drv)
	if err != nil {
		sourceDriver.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, drv, nil
}

// release frees what the migrate driver holds without closing the caller's *sql.DB.
// The postgres driver owns one pooled connection; the sqlite driver's Close would
// close the whole database, so it is left alone.
func release(dialect string, drv migratedb.Driver) {
	if dialect == Postgres {
		_ = drv.Close()
	}
}
