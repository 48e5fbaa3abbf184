package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore keeps counters in the sequence_counters table. The increment
// is a single upsert inside an IMMEDIATE transaction, so processes sharing
// the database file serialize on the write lock.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore returns a store over an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Increment(ctx context.Context, key string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var value int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sequence_counters (key, value, updated_at) VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET value = value + 1, updated_at = excluded.updated_at
		RETURNING value`, key, now()).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit counter: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, "SELECT value FROM sequence_counters WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sequence_counters (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now())
	if err != nil {
		return fmt.Errorf("failed to set counter: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
