// =============================================================================
// X9 Cash Letter Encoder - Dialect Strategy
// =============================================================================
//
// Receiving banks disagree on dozens of field values. A Dialect captures one
// bank's variation as data: a Policy of shape switches read by the assembler
// and an ordered list of Overrides applied to each typed record right after
// the base builder fills it in. Control records are overridden after their
// aggregates are computed, with the records of their scope in view.
//
// =============================================================================

package dialect

import (
	"time"

	"github.com/ginjaninja78/x9-cash-letter/internal/micr"
	"github.com/ginjaninja78/x9-cash-letter/internal/record"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
)

// Standard is the record layout family a dialect builds on.
type Standard int

const (
	X937DSTU Standard = iota
	X9100187
)

// String returns the standard's common name.
func (s Standard) String() string {
	if s == X9100187 {
		return "X9.100-187"
	}
	return "X9.37 DSTU"
}

// Policy holds the switches the assembler consults while building records.
type Policy struct {
	// IncludeAddendum emits a type 26 record after every check detail.
	IncludeAddendum bool

	// RawOnUs writes account/check as captured, without zero stripping or
	// truncation.
	RawOnUs bool

	// AllowCredits permits the credit record set at the top of each bundle
	// when the configuration asks for one.
	AllowCredits bool

	// BundleItemTypes, CashLetterItemTypes and FileItemTypes list the record
	// types counted as items by each control record.
	BundleItemTypes     []record.Type
	CashLetterItemTypes []record.Type
	FileItemTypes       []record.Type
}

// Scope is the context an override sees.
type Scope struct {
	Config *Configuration

	// ExportedAt is the export run time; BusinessDate the deposit day.
	ExportedAt   time.Time
	BusinessDate time.Time

	// BundleIndex is the zero-based bundle being built.
	BundleIndex int

	// Transaction and MICR are set while building item records.
	Transaction *types.Transaction
	MICR        *micr.Line

	// Sequence is the item sequence number of the current item or credit.
	Sequence int64

	// Side is set while building image records.
	Side types.Side

	// Records holds the records summarised by the control record being
	// overridden.
	Records []record.Record
}

// Override adjusts a record in place.
type Override func(rec record.Record, s *Scope)

// On adapts a function on one concrete record type into an Override that
// ignores every other type.
func On[T record.Record](fn func(rec T, s *Scope)) Override {
	return func(rec record.Record, s *Scope) {
		if r, ok := rec.(T); ok {
			fn(r, s)
		}
	}
}

// Dialect is a named variation of the base record layouts.
type Dialect struct {
	// Name identifies the dialect in profiles.
	Name string

	// CounterPrefix scopes the durable sequence counters.
	CounterPrefix string

	Standard  Standard
	Policy    Policy
	Overrides []Override
}

// Apply runs every override against rec in order.
func (d *Dialect) Apply(rec record.Record, s *Scope) {
	for _, o := range d.Overrides {
		o(rec, s)
	}
}

// Extend returns a copy of d renamed and with extra overrides appended.
// The policy can be adjusted through tweak.
func (d *Dialect) Extend(name, counterPrefix string, tweak func(*Policy), overrides ...Override) *Dialect {
	policy := d.Policy
	policy.BundleItemTypes = append([]record.Type(nil), d.Policy.BundleItemTypes...)
	policy.CashLetterItemTypes = append([]record.Type(nil), d.Policy.CashLetterItemTypes...)
	policy.FileItemTypes = append([]record.Type(nil), d.Policy.FileItemTypes...)
	if tweak != nil {
		tweak(&policy)
	}

	return &Dialect{
		Name:          name,
		CounterPrefix: counterPrefix,
		Standard:      d.Standard,
		Policy:        policy,
		Overrides:     append(append([]Override(nil), d.Overrides...), overrides...),
	}
}
