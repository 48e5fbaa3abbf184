// =============================================================================
// X9 Cash Letter Encoder - CSV Manifest Parser
// =============================================================================
//
// This module reads deposit manifests exported by check scanners and teller
// systems. A manifest lists one check per row: its amount, MICR line, scan
// time and the paths of its front and back images.
//
// KEY FEATURES:
//   - Configurable delimiters (comma, pipe, tab, semicolon)
//   - Multi-row headers, joined column by column
//   - Legacy encodings (Windows-1252, ISO-8859-1) decoded to UTF-8
//   - Byte order marks stripped
//   - Blank and commented lines skipped
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/x9-cash-letter/internal/config"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
)

// ErrEmpty is returned for a manifest without any rows.
var ErrEmpty = errors.New("CSV file is empty")

// =============================================================================
// PARSING FUNCTIONS
// =============================================================================

// Parse reads a CSV manifest from disk.
//
// PARAMETERS:
//   - filePath: the manifest to read
//   - settings: delimiter, header layout and encoding from the bank profile
//
// RETURNS:
//   - the manifest table
//   - an error if the file cannot be read or its layout does not match
func Parse(filePath string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := ParseReader(file, settings)
	if err != nil {
		return nil, err
	}
	table.SourceFile = filePath
	return table, nil
}

// ParseReader reads a CSV manifest from r.
//
// PROCESS:
//  1. Decode r to UTF-8 using the configured encoding
//  2. Read every record, tracking the line it started on
//  3. Build the headers from the first HeaderRows records
//  4. Map every non-empty record from DataStartRow on to its headers
func ParseReader(r io.Reader, settings config.CSVSettings) (*types.Table, error) {
	decoder, err := Decoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(bufio.NewReader(transform.NewReader(r, decoder.NewDecoder())))
	configureReader(csvReader, settings)

	var records [][]string
	var lines []int
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := csvReader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}

	if len(records) == 0 {
		return nil, ErrEmpty
	}

	headers, err := extractHeaders(records, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to extract headers: %w", err)
	}

	return &types.Table{
		Headers: headers,
		Rows:    extractDataRows(records, lines, headers, settings),
	}, nil
}

// Decoder returns the text encoding named by name. UTF-8 input has any byte
// order mark removed.
func Decoder(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return unicode.UTF8BOM, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// configureReader applies the profile's delimiter and comment settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	if settings.Comment != "" {
		reader.Comment = rune(settings.Comment[0])
	}

	// Scanners pad trailing columns inconsistently.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// extractHeaders builds column names from the header rows. With several
// header rows the non-empty parts of each column are joined with a space.
func extractHeaders(records [][]string, settings config.CSVSettings) ([]string, error) {
	if settings.HeaderRows <= 0 {
		return nil, fmt.Errorf("header_rows must be at least 1")
	}
	if len(records) < settings.HeaderRows {
		return nil, fmt.Errorf("file has %d row(s), fewer than header_rows %d", len(records), settings.HeaderRows)
	}

	maxCols := 0
	for i := 0; i < settings.HeaderRows; i++ {
		if len(records[i]) > maxCols {
			maxCols = len(records[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < settings.HeaderRows; row++ {
			if col < len(records[row]) {
				if value := strings.TrimSpace(records[row][col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}

	return cleanHeaders(headers), nil
}

// cleanHeaders names blank columns Column_N.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// extractDataRows maps records from DataStartRow on to headers. Blank
// records are dropped; missing trailing cells are empty.
func extractDataRows(records [][]string, lines []int, headers []string, settings config.CSVSettings) []types.Row {
	start := settings.DataStartRow - 1
	if start < settings.HeaderRows {
		start = settings.HeaderRows
	}

	var rows []types.Row
	for i := start; i < len(records); i++ {
		record := records[i]
		if isRowEmpty(record) {
			continue
		}

		fields := make(map[string]string, len(headers))
		for col, header := range headers {
			if col < len(record) {
				fields[header] = strings.TrimSpace(record[col])
			} else {
				fields[header] = ""
			}
		}
		rows = append(rows, types.Row{Number: lines[i], Fields: fields})
	}
	return rows
}

// isRowEmpty reports whether every cell is blank.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

