// =============================================================================
// X9 Cash Letter Encoder - Deposit Manifest Loader
// =============================================================================
//
// This package turns a manifest file into deposit batches. Each row becomes a
// transaction; rows sharing a batch ID form one batch, in order of first
// appearance. Image paths are resolved relative to the manifest and the scans
// are read into memory.
//
// PROCESSING PIPELINE (per row):
//   1. Apply the profile's column transforms
//   2. Parse amount, scan time and currency type
//   3. Keep the MICR line as captured (plain or sealed)
//   4. Read the front and back images
//
// Missing image paths are not an error here; validation reports them with the
// transaction they belong to.
//
// =============================================================================

package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/config"
	"github.com/ginjaninja78/x9-cash-letter/internal/csvparser"
	"github.com/ginjaninja78/x9-cash-letter/internal/transform"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
	"github.com/ginjaninja78/x9-cash-letter/internal/xlsxparser"
)

// DefaultCurrencyType is used when a row leaves the currency type blank.
const DefaultCurrencyType = "check"

// RowError reports a manifest row that could not be turned into a
// transaction.
type RowError struct {
	File   string
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s row %d: %v", filepath.Base(e.File), e.Row, e.Err)
	}
	return fmt.Sprintf("%s row %d, column '%s': %v", filepath.Base(e.File), e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Manifest is a loaded manifest file.
type Manifest struct {
	// Path is the manifest file.
	Path string

	// Batches are the deposits found in the file.
	Batches []types.Batch

	// Rows is the number of data rows read.
	Rows int
}

// Transactions returns the number of transactions across all batches.
func (m *Manifest) Transactions() int {
	n := 0
	for _, b := range m.Batches {
		n += len(b.Transactions)
	}
	return n
}

// Loader reads manifests for one bank profile.
type Loader struct {
	profile    *config.Profile
	transforms *transform.Transformer
	logger     *slog.Logger
}

// NewLoader compiles the profile's column transforms.
func NewLoader(profile *config.Profile, logger *slog.Logger) (*Loader, error) {
	t, err := transform.New(profile.ColumnTransforms)
	if err != nil {
		return nil, fmt.Errorf("invalid column transforms in profile %q: %w", profile.Code, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		profile:    profile,
		transforms: t,
		logger:     logger.With("profile", profile.Code),
	}, nil
}

// Load reads the manifest at path. The format follows the extension: .xlsx
// and .xlsm are workbooks, anything else is read as CSV.
func (l *Loader) Load(ctx context.Context, path string) (*Manifest, error) {
	var tables []*types.Table

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		parsed, err := xlsxparser.Parse(path, l.profile.XLSXSettings)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		tables = parsed
	default:
		parsed, err := csvparser.Parse(path, l.profile.CSVSettings)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		tables = []*types.Table{parsed}
	}

	m := &Manifest{Path: path}
	index := make(map[string]int)
	for _, table := range tables {
		if table.SourceFile == "" {
			table.SourceFile = path
		}
		if err := l.collect(ctx, table, m, index); err != nil {
			return nil, err
		}
	}

	l.logger.Info("manifest.loaded",
		"file", filepath.Base(path),
		"rows", m.Rows,
		"batches", len(m.Batches),
		"transactions", m.Transactions(),
		"column_transforms", l.transforms.Len(),
	)
	return m, nil
}

// Batches converts one table into batches.
func (l *Loader) Batches(ctx context.Context, table *types.Table) ([]types.Batch, error) {
	m := &Manifest{Path: table.SourceFile}
	if err := l.collect(ctx, table, m, make(map[string]int)); err != nil {
		return nil, err
	}
	return m.Batches, nil
}

// collect appends the transactions of table to m, grouping by batch ID.
// index maps batch IDs to their position in m.Batches.
func (l *Loader) collect(ctx context.Context, table *types.Table, m *Manifest, index map[string]int) error {
	cols, err := l.resolveColumns(table)
	if err != nil {
		return err
	}

	defaultBatch := strings.TrimSuffix(filepath.Base(table.SourceFile), filepath.Ext(table.SourceFile))
	dir := filepath.Dir(table.SourceFile)

	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("manifest load cancelled at row %d: %w", row.Number, err)
		}
		m.Rows++

		fields := make(map[string]string, len(row.Fields))
		for k, v := range row.Fields {
			fields[k] = v
		}
		if err := l.transforms.Apply(fields); err != nil {
			return &RowError{File: table.SourceFile, Row: row.Number, Err: err}
		}

		tx, err := l.transaction(fields, cols, dir)
		if err != nil {
			err.File, err.Row = table.SourceFile, row.Number
			return err
		}

		batchID := defaultBatch
		if cols.batchID != "" && fields[cols.batchID] != "" {
			batchID = fields[cols.batchID]
		}
		tx.BatchID = batchID

		i, ok := index[batchID]
		if !ok {
			name := batchID
			if cols.batchName != "" && fields[cols.batchName] != "" {
				name = fields[cols.batchName]
			}
			m.Batches = append(m.Batches, types.Batch{ID: batchID, Name: name})
			i = len(m.Batches) - 1
			index[batchID] = i
		}
		m.Batches[i].Transactions = append(m.Batches[i].Transactions, *tx)
	}

	return nil
}

// =============================================================================
// COLUMN RESOLUTION
// =============================================================================

// columns holds the actual table headers of each transaction field. Optional
// fields the table lacks are empty.
type columns struct {
	id, batchID, batchName, amount, processedAt string
	currency, micr, front, back, imageDate      string
}

// resolveColumns matches the profile's column names against the headers.
func (l *Loader) resolveColumns(table *types.Table) (columns, error) {
	c := l.profile.Columns
	var cols columns
	var missing []string

	required := func(name string, dst *string) {
		if h, ok := table.Header(name); ok {
			*dst = h
		} else {
			missing = append(missing, name)
		}
	}
	optional := func(name string, dst *string) {
		if h, ok := table.Header(name); ok {
			*dst = h
		}
	}

	required(c.TransactionID, &cols.id)
	required(c.Amount, &cols.amount)
	required(c.MICR, &cols.micr)
	required(c.FrontImage, &cols.front)
	required(c.BackImage, &cols.back)
	optional(c.BatchID, &cols.batchID)
	optional(c.BatchName, &cols.batchName)
	optional(c.ProcessedAt, &cols.processedAt)
	optional(c.CurrencyType, &cols.currency)
	optional(c.ImageDate, &cols.imageDate)

	if len(missing) > 0 {
		return cols, fmt.Errorf("%s is missing required column(s): %s",
			filepath.Base(table.SourceFile), strings.Join(missing, ", "))
	}
	return cols, nil
}

// =============================================================================
// ROW CONVERSION
// =============================================================================

// transaction builds a transaction from one transformed row.
func (l *Loader) transaction(fields map[string]string, cols columns, dir string) (*types.Transaction, *RowError) {
	tx := &types.Transaction{
		ID:            fields[cols.id],
		MICREncrypted: fields[cols.micr],
		CurrencyType:  DefaultCurrencyType,
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(fields[cols.amount]))
	if err != nil {
		return nil, &RowError{Column: cols.amount, Err: fmt.Errorf("invalid amount %q", fields[cols.amount])}
	}
	tx.Amount = amount

	if cols.currency != "" && strings.TrimSpace(fields[cols.currency]) != "" {
		tx.CurrencyType = strings.ToLower(strings.TrimSpace(fields[cols.currency]))
	}

	if cols.processedAt != "" && fields[cols.processedAt] != "" {
		t, err := l.parseTime(fields[cols.processedAt])
		if err != nil {
			return nil, &RowError{Column: cols.processedAt, Err: err}
		}
		tx.ProcessedAt = t
	}

	var created *time.Time
	if cols.imageDate != "" && fields[cols.imageDate] != "" {
		t, err := l.parseTime(fields[cols.imageDate])
		if err != nil {
			return nil, &RowError{Column: cols.imageDate, Err: err}
		}
		created = &t
	}

	for _, side := range []struct {
		column string
		side   types.Side
	}{{cols.front, types.Front}, {cols.back, types.Back}} {
		ref := strings.TrimSpace(fields[side.column])
		if ref == "" {
			continue
		}
		data, err := readImage(dir, ref)
		if err != nil {
			return nil, &RowError{Column: side.column, Err: err}
		}
		tx.Images = append(tx.Images, types.Image{Side: side.side, Data: data, CreatedAt: created})
	}

	return tx, nil
}

// parseTime tries the profile's layouts, then RFC 3339. Times without a zone
// are local.
func (l *Loader) parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range l.profile.Columns.TimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date/time %q", value)
}

// readImage reads an image referenced by a manifest. Relative paths are
// resolved against the manifest directory.
func readImage(dir, ref string) ([]byte, error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}
