// ABOUTME: Core SQLite store for plughub.
// ABOUTME: Handles database initialization, migrations, and connection management for execution history.

package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Migration version constants
const (
	MigrationV1 = 1 // Initial schema with executions table
	MigrationV2 = 2 // Composite indexes for history filtering
	MigrationV3 = 3 // Admin API request log
)

// CurrentSchemaVersion is the target version for the database schema
const CurrentSchemaVersion = MigrationV3

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs all pending migrations
func (s *Store) migrate() error {
	if err := s.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := s.getCurrentMigrationVersion()
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	if currentVersion < MigrationV1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	if currentVersion < MigrationV2 {
		if err := s.migrateV2(); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
	}

	if currentVersion < MigrationV3 {
		if err := s.migrateV3(); err != nil {
			return fmt.Errorf("migration v3 failed: %w", err)
		}
	}

	return nil
}

// createMigrationsTable creates the schema_migrations tracking table
func (s *Store) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)
	`)
	return err
}

// getCurrentMigrationVersion retrieves the current schema version
func (s *Store) getCurrentMigrationVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(version), 0) FROM schema_migrations
	`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// recordMigration records a completed migration
func (s *Store) recordMigration(version int, description string) error {
	_, err := s.db.Exec(`
		INSERT INTO schema_migrations (version, description)
		VALUES (?, ?)
	`, version, description)
	return err
}

// migrateV1 creates the executions table
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		plugin_id TEXT NOT NULL,
		location TEXT DEFAULT '',
		hook TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		success INTEGER NOT NULL,
		args TEXT DEFAULT '',
		return_value TEXT DEFAULT '',
		error TEXT DEFAULT '',
		duration_us INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_executions_timestamp ON executions(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_executions_run ON executions(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.recordMigration(MigrationV1, "Create executions table"); err != nil {
		return err
	}

	log.Printf("Applied migration v%d: Create executions table", MigrationV1)
	return nil
}

// migrateV2 adds composite indexes used by the history filters
func (s *Store) migrateV2() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_executions_hook_timestamp ON executions(hook, timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_executions_plugin_hook_success ON executions(plugin_id, hook, success)",
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := s.recordMigration(MigrationV2, "Add composite indexes for history filtering"); err != nil {
		return err
	}

	log.Printf("Applied migration v%d: Add composite indexes for history filtering", MigrationV2)
	return nil
}

// migrateV3 creates the request_logs table for the admin API
func (s *Store) migrateV3() error {
	schema := `
	CREATE TABLE IF NOT EXISTS request_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		plugin_id TEXT DEFAULT '',
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		duration_ms INTEGER DEFAULT 0,
		ip_address TEXT DEFAULT '',
		user_agent TEXT DEFAULT '',
		request_body TEXT DEFAULT '',
		response_body TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_request_logs_timestamp ON request_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_request_logs_plugin ON request_logs(plugin_id, timestamp DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.recordMigration(MigrationV3, "Create request_logs table"); err != nil {
		return err
	}

	log.Printf("Applied migration v%d: Create request_logs table", MigrationV3)
	return nil
}
