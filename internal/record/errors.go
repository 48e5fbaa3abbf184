package record

import "fmt"

// FormatError reports a field value that cannot be represented within its
// declared width. It aborts the whole export.
type FormatError struct {
	// Record is the record type being encoded.
	Record Type

	// Field is the field name from the record layout.
	Field string

	// Value is the offending value.
	Value string

	// Width is the declared field width.
	Width int

	// Reason describes the failed rule.
	Reason string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("record %s field %s (width %d, value %q): %s",
		e.Record, e.Field, e.Width, e.Value, e.Reason)
}
