package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExportEntry stamps one batch with the file it was exported in.
type ExportEntry struct {
	RunID        string
	BatchID      string
	Dialect      string
	FileName     string
	ItemCount    int
	TotalAmount  decimal.Decimal
	BusinessDate time.Time
	ExportedAt   time.Time
}

// ExportLog records and queries export history.
type ExportLog struct {
	db *sql.DB
}

// NewExportLog returns an ExportLog backed by db.
func NewExportLog(db *sql.DB) *ExportLog {
	return &ExportLog{db: db}
}

// Record stores entries in a single transaction.
func (l *ExportLog) Record(ctx context.Context, entries ...ExportEntry) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin export history transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO export_history
		(run_id, batch_id, dialect, file_name, item_count, total_amount, business_date, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, insert,
			e.RunID, e.BatchID, e.Dialect, e.FileName, e.ItemCount,
			e.TotalAmount.StringFixed(2), e.BusinessDate.Format("2006-01-02"), e.ExportedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to record export of batch %s: %w", e.BatchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export history: %w", err)
	}
	return nil
}

// ForBatch returns every export of batchID, oldest first.
func (l *ExportLog) ForBatch(ctx context.Context, batchID string) ([]ExportEntry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT run_id, batch_id, dialect, file_name, item_count,
		total_amount, business_date, exported_at FROM export_history WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query export history: %w", err)
	}
	defer rows.Close()

	var entries []ExportEntry
	for rows.Next() {
		var e ExportEntry
		var total, businessDate, exportedAt string
		if err := rows.Scan(&e.RunID, &e.BatchID, &e.Dialect, &e.FileName, &e.ItemCount,
			&total, &businessDate, &exportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export history: %w", err)
		}
		if e.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("failed to parse stored total %q: %w", total, err)
		}
		if e.BusinessDate, err = time.Parse("2006-01-02", businessDate); err != nil {
			return nil, fmt.Errorf("failed to parse stored business date %q: %w", businessDate, err)
		}
		if e.ExportedAt, err = time.Parse(time.RFC3339, exportedAt); err != nil {
			return nil, fmt.Errorf("failed to parse stored export time %q: %w", exportedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
