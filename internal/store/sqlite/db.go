// Package sqlite provides the durable WorkflowStore backed by SQLite.
// The database is a single file with WAL journaling; schema changes run
// through embedded golang-migrate migrations on open.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/ncruces/go-sqlite3/driver" // registers the sqlite3 database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // embeds the sqlite3 wasm binary

	"github.com/MightyPrytanis/roundtable/internal/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB wraps the SQLite connection and provides repository access.
type DB struct {
	conn *sql.DB
	path string
}

// NewDB opens (creating if needed) the database at path and runs pending
// migrations. The parent directory is created with 0700 permissions. An
// existing database file is copied to path+".bak" before migrations run.
func NewDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := backupFile(path, path+".bak"); err != nil {
			return nil, fmt.Errorf("failed to back up database before migration: %w", err)
		}
	}

	dsn := "file:" + path +
		"?_pragma=journal_mode(wal)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Debug(log.CatDB, "database opened", "path", path)
	return &DB{conn: conn, path: path}, nil
}

// runMigrations applies all pending up migrations from the embedded FS.
func runMigrations(conn *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := newMigrationDriver(conn)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "roundtable", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// backupFile copies src to dst, overwriting dst.
func backupFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: src is the configured db path
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) //nolint:gosec
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}

// Connection returns the underlying *sql.DB.
func (d *DB) Connection() *sql.DB {
	return d.conn
}

// WorkflowRepository returns the workflow store backed by this database.
func (d *DB) WorkflowRepository() *workflowRepository {
	return newWorkflowRepository(d.conn)
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// DefaultPath returns the conventional database location under the user's
// home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".roundtable", "roundtable.db"), nil
}
