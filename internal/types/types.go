// =============================================================================
// X9 Cash Letter Encoder - Shared Types
// =============================================================================
//
// This package contains the deposit data handed to the encoder. Types defined
// here are used by:
//   - assembler
//   - validation
//   - manifest
//   - xmlwriter
//
// =============================================================================

package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BATCH TYPES
// =============================================================================

// Batch is a group of deposited transactions selected for export together.
type Batch struct {
	// ID identifies the batch in the host system.
	ID string

	// Name is a human readable label.
	Name string

	// Transactions contains every check in the batch.
	Transactions []Transaction
}

// Transaction is one scanned check.
type Transaction struct {
	// ID identifies the transaction in the host system.
	ID string

	// BatchID is the batch this transaction was deposited in.
	BatchID string

	// Amount is the check amount in dollars.
	Amount decimal.Decimal

	// ProcessedAt is when the check was scanned. Exports sort on it.
	ProcessedAt time.Time

	// CurrencyType is the payment kind, e.g. "check" or "cash".
	CurrencyType string

	// MICREncrypted is the sealed MICR line as captured by the scanner.
	MICREncrypted string

	// Images holds the scanned sides, front first.
	Images []Image
}

// Side identifies which face of a document an image shows.
type Side int

const (
	Front Side = iota
	Back
)

// String returns "front" or "back".
func (s Side) String() string {
	if s == Back {
		return "back"
	}
	return "front"
}

// ParseSide accepts front/back (and f/b) in any case.
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "f", "0":
		return Front, true
	case "back", "b", "1":
		return Back, true
	}
	return Front, false
}

// Image is one scanned side of a check.
type Image struct {
	// Side says which face the image shows.
	Side Side

	// Data is the raw image file content.
	Data []byte

	// CreatedAt is when the image was captured. Nil falls back to the
	// export time.
	CreatedAt *time.Time
}

// Sides returns the front and back images. When several images share a side
// the first one wins. A missing side is returned as nil.
func (t *Transaction) Sides() (front, back *Image) {
	for i := range t.Images {
		img := &t.Images[i]
		if len(img.Data) == 0 {
			continue
		}
		switch img.Side {
		case Front:
			if front == nil {
				front = img
			}
		case Back:
			if back == nil {
				back = img
			}
		}
	}
	return front, back
}

// Total sums the amounts of txs.
func Total(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.Amount)
	}
	return sum
}
