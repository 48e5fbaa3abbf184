// =============================================================================
// X9 Cash Letter Encoder - Assembler
// =============================================================================
//
// This package turns deposit batches into an X9 record stream. Assembly runs
// top-down and aggregates bottom-up:
//
//   File
//   └── Cash Letter
//       └── Bundle (up to MaxItemsPerBundle items each)
//           ├── Credit set (optional: 61 or 61A + deposit slip images)
//           └── Item (25, 26, 50/52 front, 50/52 back)
//
// Every control record is computed from the records its scope just produced,
// then handed to the dialect's overrides with those records in view.
//
// FAILURE POLICY:
//   Any failure aborts the whole export. No bytes are ever returned for a
//   partially built file. Sequence numbers consumed before the failure stay
//   consumed; a retry produces new ones.
//
// =============================================================================

package assembler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/dialect"
	"github.com/ginjaninja78/x9-cash-letter/internal/imaging"
	"github.com/ginjaninja78/x9-cash-letter/internal/record"
	"github.com/ginjaninja78/x9-cash-letter/internal/sequence"
)

// ErrNoTransactions is returned when there is nothing to export.
var ErrNoTransactions = errors.New("no transactions to export")

// Decrypter opens the sealed MICR line of a transaction.
type Decrypter interface {
	Decrypt(value string) (string, error)
}

// Options carries the run-level inputs of an export.
type Options struct {
	// ExportedAt is the file creation time. Defaults to now.
	ExportedAt time.Time

	// BusinessDate is the deposit day. Defaults to ExportedAt.
	BusinessDate time.Time

	// Decrypter opens MICR lines. Nil treats them as plain text.
	Decrypter Decrypter

	// Logger receives progress events. Nil discards them.
	Logger *slog.Logger
}

// Assembler builds the record stream of one export for one dialect. It is
// not safe for concurrent use; run one Assembler per export.
type Assembler struct {
	dialect      *dialect.Dialect
	config       *dialect.Configuration
	alloc        *sequence.Allocator
	images       imaging.Pipeline
	decrypter    Decrypter
	logger       *slog.Logger
	exportedAt   time.Time
	businessDate time.Time
}

// New creates an Assembler.
//
// PARAMETERS:
//   - d: the receiving bank dialect
//   - cfg: the resolved bank profile
//   - alloc: the durable sequence allocator
//   - images: the image pipeline
//   - opts: run-level options
func New(d *dialect.Dialect, cfg *dialect.Configuration, alloc *sequence.Allocator, images imaging.Pipeline, opts Options) *Assembler {
	if opts.ExportedAt.IsZero() {
		opts.ExportedAt = time.Now()
	}
	if opts.BusinessDate.IsZero() {
		opts.BusinessDate = opts.ExportedAt
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Assembler{
		dialect:      d,
		config:       cfg,
		alloc:        alloc,
		images:       images,
		decrypter:    opts.Decrypter,
		logger:       opts.Logger.With("dialect", d.Name),
		exportedAt:   opts.ExportedAt,
		businessDate: opts.BusinessDate,
	}
}

// scope returns a fresh override scope for bundleIndex.
func (a *Assembler) scope(bundleIndex int) *dialect.Scope {
	return &dialect.Scope{
		Config:       a.config,
		ExportedAt:   a.exportedAt,
		BusinessDate: a.businessDate,
		BundleIndex:  bundleIndex,
	}
}

// =============================================================================
// AGGREGATION HELPERS
// =============================================================================

// checkTotal sums the amounts of every CheckDetail in records.
func checkTotal(records []record.Record) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		if d, ok := r.(*record.CheckDetail); ok {
			sum = sum.Add(d.ItemAmount)
		}
	}
	return sum
}

// imageCount counts the image view data records in records.
func imageCount(records []record.Record) int {
	return record.CountTypes(records, record.ImageViewDataType)
}
