package types

import "strings"

// =============================================================================
// MANIFEST TABLE TYPES
// =============================================================================

// Row is one data row of a manifest.
type Row struct {
	// Number is the 1-based line or sheet row the data came from.
	Number int

	// Fields maps each header to the row's cell value.
	Fields map[string]string
}

// Table is a manifest read from a CSV file or a worksheet.
type Table struct {
	// Headers are the column names in file order.
	Headers []string

	// Rows holds the non-empty data rows.
	Rows []Row

	// SourceFile is the path the table was read from.
	SourceFile string
}

// Header returns the table header equal to name ignoring case and
// surrounding space.
func (t *Table) Header(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, h := range t.Headers {
		if strings.EqualFold(h, name) {
			return h, true
		}
	}
	return "", false
}
