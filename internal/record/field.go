// =============================================================================
// X9 Cash Letter Encoder - Record Fields
// =============================================================================
//
// Every X9 record is an ordered list of fixed-width fields. This file defines
// the field kinds used by the record layouts and the rules that turn a field
// value into its exact on-wire text.
//
// FIELD KINDS:
//   Numeric           : digits only, left zero-filled, never truncated
//   Alphanumeric      : left justified, right blank-filled, truncated to width
//                       (text is folded to printable ASCII first)
//   AlphanumericRight : right justified, left blank-filled (On-Us style fields)
//   Date              : YYYYMMDD
//   Time              : HHMM
//   Amount            : whole cents, left zero-filled
//   Binary            : raw bytes, width taken from the data itself
//
// =============================================================================

package record

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies how a field value is laid out on the wire.
type Kind int

const (
	Numeric Kind = iota
	Alphanumeric
	AlphanumericRight
	Date
	Time
	Amount
	Binary
)

// String returns a readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Alphanumeric:
		return "alphanumeric"
	case AlphanumericRight:
		return "alphanumeric-right"
	case Date:
		return "date"
	case Time:
		return "time"
	case Amount:
		return "amount"
	case Binary:
		return "binary"
	}
	return "unknown"
}

// Field is a single positioned value inside a record layout.
type Field struct {
	// Name is the field name used in error messages.
	Name string

	// Kind selects the padding and validation rules.
	Kind Kind

	// Width is the declared width in bytes. Ignored for Binary fields.
	Width int

	// Text holds the value for textual and numeric kinds.
	Text string

	// Value holds the value for Amount fields.
	Value decimal.Decimal

	// Moment holds the value for Date and Time fields.
	Moment time.Time

	// Data holds the value for Binary fields.
	Data []byte

	// Required fields fail to encode when unset.
	Required bool
}

// =============================================================================
// FIELD CONSTRUCTORS
// =============================================================================

// Num builds a required numeric field from an integer.
func Num(name string, width int, n int) Field {
	return Field{Name: name, Kind: Numeric, Width: width, Text: strconv.Itoa(n), Required: true}
}

// Digits builds a numeric field from text such as a routing number.
// An empty optional value is written as blanks.
func Digits(name string, width int, s string, required bool) Field {
	return Field{Name: name, Kind: Numeric, Width: width, Text: strings.TrimSpace(s), Required: required}
}

// Alpha builds a left justified alphanumeric field.
func Alpha(name string, width int, s string) Field {
	return Field{Name: name, Kind: Alphanumeric, Width: width, Text: s}
}

// AlphaRight builds a right justified alphanumeric field.
func AlphaRight(name string, width int, s string) Field {
	return Field{Name: name, Kind: AlphanumericRight, Width: width, Text: s}
}

// Blank builds a reserved field that is always blank.
func Blank(name string, width int) Field {
	return Field{Name: name, Kind: Alphanumeric, Width: width}
}

// DateOf builds a YYYYMMDD field. A zero time is blank unless required.
func DateOf(name string, t time.Time, required bool) Field {
	return Field{Name: name, Kind: Date, Width: 8, Moment: t, Required: required}
}

// TimeOf builds an HHMM field.
func TimeOf(name string, t time.Time, required bool) Field {
	return Field{Name: name, Kind: Time, Width: 4, Moment: t, Required: required}
}

// Money builds an amount field written in whole cents.
func Money(name string, width int, d decimal.Decimal) Field {
	return Field{Name: name, Kind: Amount, Width: width, Value: d, Required: true}
}

// Blob builds a binary field.
func Blob(name string, data []byte) Field {
	return Field{Name: name, Kind: Binary, Data: data}
}

// =============================================================================
// FIELD LAYOUT
// =============================================================================

// layout returns the fixed-width text for a non-binary field.
func (f Field) layout() (string, error) {
	switch f.Kind {
	case Numeric:
		return f.layoutNumeric()

	case Alphanumeric:
		if f.Required && strings.TrimSpace(f.Text) == "" {
			return "", f.fail("required field is unset")
		}
		return padRight(truncate(Fold(f.Text), f.Width), f.Width), nil

	case AlphanumericRight:
		if f.Required && strings.TrimSpace(f.Text) == "" {
			return "", f.fail("required field is unset")
		}
		text := Fold(f.Text)
		if len(text) > f.Width {
			text = text[len(text)-f.Width:]
		}
		return padLeft(text, f.Width, ' '), nil

	case Date:
		if f.Moment.IsZero() {
			if f.Required {
				return "", f.fail("required date is unset")
			}
			return strings.Repeat(" ", f.Width), nil
		}
		return f.Moment.Format("20060102"), nil

	case Time:
		if f.Moment.IsZero() {
			if f.Required {
				return "", f.fail("required time is unset")
			}
			return strings.Repeat(" ", f.Width), nil
		}
		return f.Moment.Format("1504"), nil

	case Amount:
		return f.layoutAmount()
	}

	return "", f.fail("unsupported field kind")
}

func (f Field) layoutNumeric() (string, error) {
	if f.Text == "" {
		if f.Required {
			return "", f.fail("required field is unset")
		}
		return strings.Repeat(" ", f.Width), nil
	}
	for _, r := range f.Text {
		if r < '0' || r > '9' {
			return "", f.fail("numeric field contains non-digit characters")
		}
	}
	if len(f.Text) > f.Width {
		return "", f.fail("value exceeds field width")
	}
	return padLeft(f.Text, f.Width, '0'), nil
}

func (f Field) layoutAmount() (string, error) {
	if f.Value.IsNegative() {
		return "", f.fail("amount is negative")
	}
	cents := f.Value.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return "", f.fail("amount has more precision than whole cents")
	}
	text := cents.StringFixed(0)
	if len(text) > f.Width {
		return "", f.fail("amount exceeds field width")
	}
	return padLeft(text, f.Width, '0'), nil
}

func (f Field) fail(reason string) *FormatError {
	value := f.Text
	if f.Kind == Amount {
		value = f.Value.String()
	}
	return &FormatError{Field: f.Name, Value: value, Width: f.Width, Reason: reason}
}

// =============================================================================
// PADDING HELPERS
// =============================================================================

// padLeft pads s on the left with padChar up to length.
func padLeft(s string, length int, padChar byte) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-len(s)) + s
}

// padRight pads s on the right with blanks up to length.
func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func truncate(s string, length int) string {
	if len(s) > length {
		return s[:length]
	}
	return s
}
