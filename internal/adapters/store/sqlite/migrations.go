package sqlite

import (
	"database/sql"
	"fmt"
)

// applyMigrations applies all database migrations in order.
func applyMigrations(db *sql.DB) error {
	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("could not enable foreign keys: %w", err)
	}

	// Create migrations table
	if err := createMigrationsTable(db); err != nil {
		return err
	}

	// Apply each migration
	migrations := []struct {
		version int
		name    string
		sql     string
	}{
		{1, "create_documents_table", createDocumentsTable},
		{2, "create_pending_changes_table", createPendingChangesTable},
		{3, "create_pending_deletions_table", createPendingDeletionsTable},
		{4, "create_operations_table", createOperationsTable},
		{5, "create_conflicts_table", createConflictsTable},
		{6, "create_indices", createIndices},
	}

	for _, m := range migrations {
		applied, err := isMigrationApplied(db, m.version)
		if err != nil {
			return fmt.Errorf("could not check migration %d: %w", m.version, err)
		}

		if applied {
			continue
		}

		// Apply migration
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("could not apply migration %d (%s): %w", m.version, m.name, err)
		}

		// Record migration
		if err := recordMigration(db, m.version, m.name); err != nil {
			return fmt.Errorf("could not record migration %d: %w", m.version, err)
		}
	}

	return nil
}

// createMigrationsTable creates the migrations tracking table.
func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// isMigrationApplied checks if a migration has been applied.
func isMigrationApplied(db *sql.DB, version int) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// recordMigration records that a migration has been applied.
func recordMigration(db *sql.DB, version int, name string) error {
	_, err := db.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// Migration SQL statements

// The cached shared document is stored whole as a JSON payload. A
// single row (id = 1) holds the current state; the row is replaced on
// every save.
const createDocumentsTable = `
CREATE TABLE documents (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	payload TEXT NOT NULL,
	last_modified TIMESTAMP,
	saved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const createPendingChangesTable = `
CREATE TABLE pending_changes (
	entity_id TEXT PRIMARY KEY,
	record_kind TEXT NOT NULL,
	marked_at TIMESTAMP NOT NULL
);
`

const createPendingDeletionsTable = `
CREATE TABLE pending_deletions (
	entity_id TEXT PRIMARY KEY,
	marked_at TIMESTAMP NOT NULL
);
`

const createOperationsTable = `
CREATE TABLE operations (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	record_kind TEXT NOT NULL,
	entity_id TEXT,
	payload TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER DEFAULT 0,
	last_error TEXT,
	enqueued_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

const createConflictsTable = `
CREATE TABLE conflicts (
	id TEXT PRIMARY KEY,
	operation_id TEXT NOT NULL,
	entity_id TEXT,
	message TEXT,
	created_at TIMESTAMP NOT NULL,
	FOREIGN KEY (operation_id) REFERENCES operations(id) ON DELETE CASCADE
);
`

const createIndices = `
CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status);
CREATE INDEX IF NOT EXISTS idx_operations_entity ON operations(entity_id);
CREATE INDEX IF NOT EXISTS idx_operations_enqueued ON operations(enqueued_at);
CREATE INDEX IF NOT EXISTS idx_conflicts_operation ON conflicts(operation_id);
CREATE INDEX IF NOT EXISTS idx_pending_changes_marked ON pending_changes(marked_at);
`
