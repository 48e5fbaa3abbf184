package assembler

import (
	"context"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/record"
	"github.com/ginjaninja78/x9-cash-letter/internal/sequence"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
	"github.com/ginjaninja78/x9-cash-letter/internal/validation"
)

// Result is the outcome of BuildFile.
type Result struct {
	// Data is the encoded file. Nil when the export failed.
	Data []byte

	// Records is the record stream behind Data.
	Records []record.Record

	// Errors lists operator-facing messages for a failed export.
	Errors []string

	// Summary describes the exported file.
	Summary Summary

	// Items lists the exported checks in file order.
	Items []Item
}

// Item ties a check detail record back to its transaction.
type Item struct {
	TransactionID string
	BatchID       string
	BundleNumber  int
	Sequence      string
	Amount        decimal.Decimal
}

// Summary holds the control totals of an exported file.
type Summary struct {
	Dialect        string
	Standard       string
	BatchIDs       []string
	CashLetterID   string
	FileIDModifier string
	BundleCount    int
	ItemCount      int
	ImageCount     int
	RecordCount    int
	TotalAmount    decimal.Decimal
}

// BuildFile assembles and encodes one complete file from batches.
//
// PARAMETERS:
//   - ctx: cancels the export between bundles and inside blocking calls
//   - batches: the deposits to export; their transactions are merged
//
// RETURNS:
//   - a Result; on failure its Errors are set and Data is nil
//   - the error that aborted the export
//
// PROCESS:
//  1. Merge and sort transactions by processed time, then ID
//  2. Reject the export if any transaction has a disallowed currency type
//  3. Build the file header, the cash letter and the file control
//  4. Encode every record into one length-prefixed stream
func (a *Assembler) BuildFile(ctx context.Context, batches []types.Batch) (*Result, error) {
	result := &Result{
		Summary: Summary{
			Dialect:  a.dialect.Name,
			Standard: a.dialect.Standard.String(),
		},
	}

	fail := func(err error) (*Result, error) {
		result.Data = nil
		result.Records = nil
		result.Errors = append(result.Errors, messages(err)...)
		a.logger.Error("export.failed", "error", err)
		return result, err
	}

	var txs []types.Transaction
	for _, b := range batches {
		result.Summary.BatchIDs = append(result.Summary.BatchIDs, b.ID)
		txs = append(txs, b.Transactions...)
	}
	if len(txs) == 0 {
		return fail(ErrNoTransactions)
	}
	sortTransactions(txs)

	for i := range txs {
		if !a.config.AllowsCurrency(txs[i].CurrencyType) {
			return fail(&validation.ValidationError{
				Severity:      validation.SeverityError,
				Field:         "CurrencyType",
				Value:         txs[i].CurrencyType,
				Rule:          "currency_type",
				Message:       validation.MsgCurrencyType,
				TransactionID: txs[i].ID,
			})
		}
	}

	modifierCount, err := a.alloc.Next(ctx, sequence.FileModifierKey(a.dialect.CounterPrefix, a.exportedAt))
	if err != nil {
		return fail(err)
	}

	s := a.scope(0)

	header := &record.FileHeader{
		StandardLevel:                     3,
		FileTypeIndicator:                 a.config.FileTypeIndicator(),
		ImmediateDestinationRoutingNumber: a.config.DestinationRoutingNumber,
		ImmediateOriginRoutingNumber:      a.config.OriginRoutingNumber,
		CreatedAt:                         a.exportedAt,
		ResendIndicator:                   "N",
		ImmediateDestinationName:          a.config.DestinationName,
		ImmediateOriginName:               a.config.OriginName,
		FileIDModifier:                    sequence.FileIDModifier(modifierCount),
		CountryCode:                       "US",
	}
	a.dialect.Apply(header, s)

	cashLetter, err := a.BuildCashLetter(ctx, txs)
	if err != nil {
		return fail(err)
	}

	records := append([]record.Record{header}, cashLetter...)

	control := &record.FileControl{
		CashLetterCount:                   record.CountTypes(records, record.CashLetterHeaderType),
		TotalRecordCount:                  len(records) + 1,
		TotalItemCount:                    record.CountTypes(records, a.dialect.Policy.FileItemTypes...),
		TotalAmount:                       checkTotal(records),
		ImmediateOriginContactName:        a.config.OriginContactName,
		ImmediateOriginContactPhoneNumber: a.config.OriginContactPhone,
	}
	s.Records = records
	a.dialect.Apply(control, s)
	records = append(records, control)

	if err := record.CheckNesting(records); err != nil {
		return fail(err)
	}

	data, err := record.EncodeAll(records, a.config.Charset)
	if err != nil {
		return fail(err)
	}

	result.Data = data
	result.Records = records
	result.Summary.CashLetterID = cashLetter[0].(*record.CashLetterHeader).ID
	result.Summary.FileIDModifier = header.FileIDModifier
	result.Summary.BundleCount = record.CountTypes(records, record.BundleHeaderType)
	result.Summary.ItemCount = control.TotalItemCount
	result.Summary.ImageCount = imageCount(records)
	result.Summary.RecordCount = len(records)
	result.Summary.TotalAmount = control.TotalAmount
	result.Items = items(records, txs)

	a.logger.Info("export.completed",
		"cash_letter_id", result.Summary.CashLetterID,
		"file_id_modifier", result.Summary.FileIDModifier,
		"items", result.Summary.ItemCount,
		"bytes", len(data),
	)

	return result, nil
}

// sortTransactions orders txs by processed time, then by ID. Numeric IDs
// compare as numbers.
func sortTransactions(txs []types.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].ProcessedAt.Equal(txs[j].ProcessedAt) {
			return txs[i].ProcessedAt.Before(txs[j].ProcessedAt)
		}
		return lessID(txs[i].ID, txs[j].ID)
	})
}

func lessID(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}

// items pairs every check detail with the transaction it was built from.
// Transactions are emitted in sorted order, one check detail each.
func items(records []record.Record, txs []types.Transaction) []Item {
	out := make([]Item, 0, len(txs))
	bundle := 0
	for _, r := range records {
		switch rec := r.(type) {
		case *record.BundleHeader:
			bundle++
		case *record.CheckDetail:
			tx := txs[len(out)]
			out = append(out, Item{
				TransactionID: tx.ID,
				BatchID:       tx.BatchID,
				BundleNumber:  bundle,
				Sequence:      rec.ECEInstitutionItemSequenceNumber,
				Amount:        rec.ItemAmount,
			})
		}
	}
	return out
}

// messages flattens err into operator-facing lines: every validation
// message from the outermost in, then the underlying cause.
func messages(err error) []string {
	chain := validation.Collect(err)
	if len(chain) == 0 {
		return []string{err.Error()}
	}

	out := make([]string, 0, len(chain)+1)
	for _, ve := range chain {
		out = append(out, ve.Message)
	}
	if cause := chain[len(chain)-1].Err; cause != nil {
		out = append(out, cause.Error())
	}
	return out
}
