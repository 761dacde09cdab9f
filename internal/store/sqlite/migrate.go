package sqlite

import (
	"database/sql"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4/database"
)

// migrationDriver adapts our sqlite connection to golang-migrate's
// database.Driver. The stock sqlite drivers shipped with golang-migrate
// bind to other sql drivers; this one runs over whatever opened the
// connection, which here is the ncruces wasm driver.
type migrationDriver struct {
	db     *sql.DB
	locked atomic.Bool
}

var _ database.Driver = (*migrationDriver)(nil)

// newMigrationDriver wraps db and ensures the schema_migrations table exists.
func newMigrationDriver(db *sql.DB) (*migrationDriver, error) {
	d := &migrationDriver{db: db}
	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *migrationDriver) ensureVersionTable() error {
	_, err := d.db.Exec(
		`CREATE TABLE IF NOT EXISTS schema_migrations (version BIGINT PRIMARY KEY, dirty BOOLEAN NOT NULL)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Open is unused; the driver is always constructed around an existing
// connection via newMigrationDriver.
func (d *migrationDriver) Open(string) (database.Driver, error) {
	return nil, fmt.Errorf("open by url is not supported")
}

// Close is a no-op; the connection is owned by DB.
func (d *migrationDriver) Close() error {
	return nil
}

// Lock guards against concurrent migration within this process. Cross
// process serialization comes from SQLite's own locking plus busy_timeout.
func (d *migrationDriver) Lock() error {
	if !d.locked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (d *migrationDriver) Unlock() error {
	if !d.locked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

// Run executes one migration script.
func (d *migrationDriver) Run(migration io.Reader) error {
	script, err := io.ReadAll(migration)
	if err != nil {
		return fmt.Errorf("failed to read migration: %w", err)
	}
	if _, err := d.db.Exec(string(script)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

// SetVersion records the current migration version.
func (d *migrationDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin version transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM schema_migrations`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear schema_migrations: %w", err)
	}
	// version < 0 means no version; leave the table empty
	if version >= 0 {
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, dirty); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration version: %w", err)
		}
	}
	return tx.Commit()
}

// Version returns the current migration version.
func (d *migrationDriver) Version() (int, bool, error) {
	var version int
	var dirty bool
	err := d.db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err == sql.ErrNoRows {
		return database.NilVersion, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

// Drop removes every user table.
func (d *migrationDriver) Drop() error {
	rows, err := d.db.Query(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("error iterating tables: %w", err)
	}
	_ = rows.Close()

	for _, table := range tables {
		if _, err := d.db.Exec(`DROP TABLE IF EXISTS ` + table); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
