// Package storage persists the FAQ corpus, feedback counters, escalations and
// system settings in SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/config"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
)

// Supported drivers, as named in configuration.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Common errors
var (
	ErrNotFound          = faq.ErrNotFound
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Open opens a database connection based on the configuration.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return OpenSQLite(cfg.SQLite)
	case DriverPostgres:
		return OpenPostgres(cfg.Postgres)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
}

// OpenSQLite opens a SQLite database. ":memory:" opens a private in-memory
// database on a single connection.
func OpenSQLite(cfg config.SQLiteConfig) (*sql.DB, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	if cfg.JournalMode != "" && path != ":memory:" {
		params.Set("_journal_mode", strings.ToUpper(cfg.JournalMode))
	}

	db, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 || path == ":memory:" {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)

	return db, nil
}

// OpenPostgres opens a PostgreSQL connection pool.
func OpenPostgres(cfg config.PostgresConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// dialect returns the goqu dialect name for a configured driver.
func dialect(driver string) string {
	if driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// newBuilder returns a goqu SQL builder for a configured driver. Statements
// are built with placeholders and executed on the caller's connection.
func newBuilder(driver string) goqu.DialectWrapper {
	return goqu.Dialect(dialect(driver))
}
