package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// MigrationManager handles database migration checks and execution.
type MigrationManager struct {
	db     *sql.DB
	driver string
	files  fs.FS
	logger *observability.Logger
}

// NewMigrationManager creates a migration manager for the embedded schema of
// the given driver.
func NewMigrationManager(db *sql.DB, driver string, logger *observability.Logger) *MigrationManager {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &MigrationManager{
		db:     db,
		driver: driver,
		files:  migrationFiles,
		logger: logger.WithOperation("migrations"),
	}
}

// MigrationStatus represents the status of migrations.
type MigrationStatus struct {
	UpToDate bool
	Pending  []string
	Applied  []string
	Total    int
}

// CheckMigrations reports which migrations still need to run.
func (m *MigrationManager) CheckMigrations(ctx context.Context) (*MigrationStatus, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	migrations, err := m.listMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}

	status := &MigrationStatus{
		Pending: []string{},
		Applied: []string{},
		Total:   len(migrations),
	}
	for _, name := range migrations {
		if applied[name] {
			status.Applied = append(status.Applied, name)
		} else {
			status.Pending = append(status.Pending, name)
		}
	}
	status.UpToDate = len(status.Pending) == 0
	return status, nil
}

// RunMigrations runs the pending migrations in status, in order.
func (m *MigrationManager) RunMigrations(ctx context.Context, status *MigrationStatus) error {
	if len(status.Pending) == 0 {
		return nil
	}

	sort.Strings(status.Pending)

	for _, name := range status.Pending {
		start := time.Now()
		if err := m.runMigration(ctx, name); err != nil {
			return fmt.Errorf("run migration %s: %w", name, err)
		}
		m.logger.Info().
			Str("migration", name).
			Str("driver", m.driver).
			Dur("duration", time.Since(start)).
			Msg("Applied migration")
	}

	return nil
}

// Migrate checks and applies all pending migrations.
func (m *MigrationManager) Migrate(ctx context.Context) (*MigrationStatus, error) {
	status, err := m.CheckMigrations(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.RunMigrations(ctx, status); err != nil {
		return nil, err
	}
	return status, nil
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist.
func (m *MigrationManager) ensureSchemaMigrationsTable(ctx context.Context) error {
	var query string
	switch m.driver {
	case DriverPostgres:
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`
	default:
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`
	}
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// listMigrationFiles lists the driver's migration files in name order.
func (m *MigrationManager) listMigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(m.files, m.dir())
	if err != nil {
		return nil, err
	}

	var migrations []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		migrations = append(migrations, entry.Name())
	}
	sort.Strings(migrations)
	return migrations, nil
}

func (m *MigrationManager) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// runMigration executes one migration file and records it in one transaction.
func (m *MigrationManager) runMigration(ctx context.Context, name string) error {
	data, err := fs.ReadFile(m.files, path.Join(m.dir(), name))
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}

	query, args, err := newBuilder(m.driver).
		Insert("schema_migrations").
		Rows(goqu.Record{"version": name}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build version insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record migration version: %w", err)
	}

	return tx.Commit()
}

func (m *MigrationManager) dir() string {
	if m.driver == DriverPostgres {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}
