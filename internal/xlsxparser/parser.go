// =============================================================================
// X9 Cash Letter Encoder - XLSX Manifest Parser
// =============================================================================
//
// This module reads deposit manifests kept as spreadsheets. The layout is the
// same as a CSV manifest: one header row, then one check per row.
//
//   | transaction_id | batch_id | amount | processed_at        | micr              | front_image | back_image |
//   |----------------|----------|--------|---------------------|-------------------|-------------|------------|
//   | 1001           | B-0304   | 125.00 | 2026-03-04 09:12:00 | T071000013T 44U 7 | 1001_f.tif  | 1001_b.tif |
//
// Rows above the header row are ignored, so a title block can sit on top.
// Workbooks may split a deposit across sheets; AllSheets selects every sheet
// not prefixed with "_".
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/x9-cash-letter/internal/config"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
)

// AllSheets selects every visible sheet of a workbook.
const AllSheets = "*"

// =============================================================================
// PARSING FUNCTIONS
// =============================================================================

// Parse reads an XLSX manifest.
//
// PARAMETERS:
//   - filePath: the workbook to read
//   - settings: sheet selection and header row from the bank profile
//
// RETURNS:
//   - one table per selected sheet, in workbook order
//   - an error if the workbook cannot be opened or a sheet is malformed
func Parse(filePath string, settings config.XLSXSettings) ([]*types.Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	tables, err := parseWorkbook(f, settings)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		t.SourceFile = filePath
	}
	return tables, nil
}

// ParseReader reads an XLSX manifest from r.
func ParseReader(r io.Reader, settings config.XLSXSettings) ([]*types.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return parseWorkbook(f, settings)
}

// parseWorkbook resolves the sheet selection and reads each sheet.
func parseWorkbook(f *excelize.File, settings config.XLSXSettings) ([]*types.Table, error) {
	var sheets []string
	switch settings.Sheet {
	case "":
		name := f.GetSheetName(0)
		if name == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheets = []string{name}
	case AllSheets:
		for _, name := range f.GetSheetList() {
			if !strings.HasPrefix(name, "_") {
				sheets = append(sheets, name)
			}
		}
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no manifest sheets")
		}
	default:
		if idx, err := f.GetSheetIndex(settings.Sheet); err != nil || idx < 0 {
			return nil, fmt.Errorf("workbook has no sheet named '%s'", settings.Sheet)
		}
		sheets = []string{settings.Sheet}
	}

	tables := make([]*types.Table, 0, len(sheets))
	for _, name := range sheets {
		table, err := parseSheet(f, name, settings.HeaderRow)
		if err != nil {
			return nil, fmt.Errorf("error parsing sheet '%s': %w", name, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// parseSheet reads the header row and the data rows below it.
func parseSheet(f *excelize.File, sheetName string, headerRow int) (*types.Table, error) {
	if headerRow < 1 {
		headerRow = 1
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < headerRow {
		return nil, fmt.Errorf("sheet has %d row(s), no header at row %d", len(rows), headerRow)
	}

	headers := make([]string, len(rows[headerRow-1]))
	for i, cell := range rows[headerRow-1] {
		header := strings.TrimSpace(cell)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		headers[i] = header
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("header row %d is empty", headerRow)
	}

	table := &types.Table{Headers: headers}
	for i := headerRow; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}

		fields := make(map[string]string, len(headers))
		for col, header := range headers {
			if col < len(row) {
				fields[header] = strings.TrimSpace(row[col])
			} else {
				fields[header] = ""
			}
		}
		table.Rows = append(table.Rows, types.Row{Number: i + 1, Fields: fields})
	}

	return table, nil
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
