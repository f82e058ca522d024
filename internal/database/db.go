// Package database provides the SQLite setup, models, and data access layer
// (Store) for conversations, messages, attachments, the search cache, and user
// memory.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/murailochat/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// ErrDirtySchema is returned when a previous migration stopped halfway and
// the schema needs manual repair.
var ErrDirtySchema = errors.New("database schema is dirty")

// NewDB opens the chat database at dsn, creating the parent directory of an
// on-disk file, and migrates it to the latest schema version.
func NewDB(dsn string, log *slog.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "database")

	file, onDisk := dsnFile(dsn)
	if onDisk {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A single connection serializes writes and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		CloseDB(db, log)
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	version, err := Migrate(db.DB, file, log)
	if err != nil {
		CloseDB(db, log)
		return nil, err
	}

	log.Info("Chat database ready", "file", file, "in_memory", !onDisk, "schema_version", version)
	return db, nil
}

// CloseDB closes the connection pool. A nil db is ignored.
func CloseDB(db *sqlx.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.Close(); err != nil {
		log.Error("Failed to close chat database", "error", err)
	}
}

// Migrate brings the schema up to the newest embedded migration and returns
// the resulting schema version.
func Migrate(db *sql.DB, name string, log *slog.Logger) (uint, error) {
	if db == nil {
		return 0, errors.New("cannot migrate a nil database")
	}
	if log == nil {
		log = slog.Default()
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	target, err := sqlite3.WithInstance(db, &sqlite3.Config{DatabaseName: name})
	if err != nil {
		return 0, fmt.Errorf("failed to prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", target)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrator: %w", err)
	}

	before, dirty, err := schemaVersion(m)
	if err != nil {
		return 0, err
	}
	if dirty {
		return before, fmt.Errorf("version %d: %w", before, ErrDirtySchema)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, fmt.Errorf("failed to migrate from version %d: %w", before, err)
	}

	after, _, err := schemaVersion(m)
	if err != nil {
		return before, err
	}
	if after != before {
		log.Info("Chat schema migrated", "from_version", before, "to_version", after)
	}
	return after, nil
}

func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}

// dsnFile returns the file a SQLite DSN points at without its "file:" prefix
// or query, and whether that file lives on disk.
func dsnFile(dsn string) (string, bool) {
	file := strings.TrimPrefix(dsn, "file:")
	query := ""
	if idx := strings.Index(file, "?"); idx != -1 {
		file, query = file[:idx], file[idx+1:]
	}
	if decoded, err := url.PathUnescape(file); err == nil {
		file = decoded
	}
	if file == "" || file == ":memory:" || strings.Contains(query, "mode=memory") {
		return file, false
	}
	return file, true
}
