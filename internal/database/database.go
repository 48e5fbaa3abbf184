// =============================================================================
// X9 Cash Letter Encoder - SQLite Persistence
// =============================================================================
//
// Opens the embedded SQLite database that holds the durable sequence
// counters and the export history, and brings its schema up to date.
//
// TABLES:
//   sequence_counters : one row per allocator key, last issued value
//   export_history    : one row per exported batch, stamped with file name
//
// =============================================================================

package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/x9-cash-letter/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS sequence_counters (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS export_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	batch_id TEXT NOT NULL,
	dialect TEXT NOT NULL,
	file_name TEXT NOT NULL,
	item_count INTEGER NOT NULL,
	total_amount TEXT NOT NULL,
	business_date TEXT NOT NULL,
	exported_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_export_history_batch ON export_history(batch_id);
`

// Open opens (creating when needed) the database at path and migrates it.
// The special path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.L().Debug("database.ready", "path", path)
	return db, nil
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// dsn builds a modernc.org/sqlite connection string. Write transactions
// start IMMEDIATE so concurrent writers queue on the busy timeout instead of
// failing on lock upgrade.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_txlock", "immediate")
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return "file:" + path + "?" + q.Encode()
}
