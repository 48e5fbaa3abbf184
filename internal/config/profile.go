package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// BANK PROFILE STRUCTURE
// =============================================================================

// Profile describes one receiving bank: which dialect it speaks, which
// manifests belong to it, how to read them and the attributes that feed the
// dialect configuration.
type Profile struct {
	// Code is a short identifier used in file names and on the command line.
	Code string `yaml:"code"`

	// Name is the human readable bank name.
	Name string `yaml:"name"`

	// Dialect names a registered dialect, e.g. "X937" or "CommerceBank".
	Dialect string `yaml:"dialect"`

	// ManifestPatterns are glob patterns matched against manifest file names.
	// Examples:
	//   - "commerce_*.csv"
	//   - "*_usbank.xlsx"
	ManifestPatterns []string `yaml:"manifest_patterns"`

	// CSVSettings controls how CSV manifests are read.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// XLSXSettings controls how XLSX manifests are read.
	XLSXSettings XLSXSettings `yaml:"xlsx_settings"`

	// Columns maps manifest headers to transaction fields.
	Columns ColumnMapping `yaml:"columns"`

	// Attributes are the dialect attributes of this bank. Values prefixed
	// "enc:" are sealed.
	Attributes map[string]string `yaml:"attributes"`

	// AttributeTransforms normalise attribute values before resolution.
	// Field names an attribute key.
	AttributeTransforms []TransformationRule `yaml:"attribute_transforms"`

	// ColumnTransforms normalise manifest cells before they are parsed.
	// Field names a manifest header.
	ColumnTransforms []TransformationRule `yaml:"column_transforms"`

	// Source is the file the profile was loaded from.
	Source string `yaml:"-"`
}

// Matches reports whether the base name of filePath matches one of the
// profile's manifest patterns. Matching ignores case.
func (p *Profile) Matches(filePath string) bool {
	fileName := strings.ToLower(filepath.Base(filePath))
	for _, pattern := range p.ManifestPatterns {
		matched, err := filepath.Match(strings.ToLower(pattern), fileName)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// =============================================================================
// MANIFEST READING SETTINGS
// =============================================================================

// CSVSettings contains settings for parsing CSV manifests.
type CSVSettings struct {
	// Delimiter separates fields. Use "\t" for tab.
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRows is the number of header rows. Multi-row headers are joined
	// column by column with a space.
	// Default: 1
	HeaderRows int `yaml:"header_rows"`

	// DataStartRow is the 1-based row where data begins.
	// Default: HeaderRows + 1
	DataStartRow int `yaml:"data_start_row"`

	// Encoding is one of "UTF-8", "ISO-8859-1", "Windows-1252".
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// Comment marks lines to skip when set.
	Comment string `yaml:"comment"`
}

// XLSXSettings contains settings for reading XLSX manifests.
type XLSXSettings struct {
	// Sheet is the worksheet to read. Empty uses the first sheet; "*"
	// reads every sheet whose name does not start with "_".
	Sheet string `yaml:"sheet"`

	// HeaderRow is the 1-based row holding the column headers.
	// Default: 1
	HeaderRow int `yaml:"header_row"`
}

// ColumnMapping names the manifest header of every transaction field.
// Header matching ignores case and surrounding space.
type ColumnMapping struct {
	TransactionID string `yaml:"transaction_id"`
	BatchID       string `yaml:"batch_id"`
	BatchName     string `yaml:"batch_name"`
	Amount        string `yaml:"amount"`
	ProcessedAt   string `yaml:"processed_at"`
	CurrencyType  string `yaml:"currency_type"`
	MICR          string `yaml:"micr"`
	FrontImage    string `yaml:"front_image"`
	BackImage     string `yaml:"back_image"`
	ImageDate     string `yaml:"image_date"`

	// TimeLayouts are tried in order when parsing ProcessedAt and ImageDate.
	// RFC 3339 is always tried last.
	TimeLayouts []string `yaml:"time_layouts"`
}

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// TransformationRule defines the transformations applied to one field.
type TransformationRule struct {
	// Field names the manifest header or attribute key to transform.
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is the transformation to apply.
	// Supported types:
	//   - "trim", "trim_left", "trim_right"
	//   - "uppercase", "lowercase"
	//   - "prepend_string", "append_string"
	//   - "replace", "regex_replace"
	//   - "pad_zeros_to_length", "ensure_length", "substring"
	//   - "remove_leading_zeros", "extract_digits", "remove_special_chars"
	//   - "normalize_whitespace"
	//   - "format_date"        : Value is "input|output" Go layouts
	//   - "format_amount"      : strips currency symbols and separators
	//   - "lookup", "lookup_with_default"
	//   - "if_empty_use_default", "if_empty_use_field"
	Type string `yaml:"type"`

	// Value is the parameter of the transformation.
	Value string `yaml:"value"`

	// Find is the substring or pattern for "replace" and "regex_replace".
	Find string `yaml:"find,omitempty"`

	// LookupTable maps input values to output values for "lookup".
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// Default manifest headers.
const (
	DefaultTransactionIDColumn = "transaction_id"
	DefaultBatchIDColumn       = "batch_id"
	DefaultBatchNameColumn     = "batch_name"
	DefaultAmountColumn        = "amount"
	DefaultProcessedAtColumn   = "processed_at"
	DefaultCurrencyTypeColumn  = "currency_type"
	DefaultMICRColumn          = "micr"
	DefaultFrontImageColumn    = "front_image"
	DefaultBackImageColumn     = "back_image"
	DefaultImageDateColumn     = "image_date"
)

// DefaultTimeLayouts are tried when a profile lists none.
var DefaultTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 3:04 PM",
	"2006-01-02",
	"01/02/2006",
}

// applyProfileDefaults sets default values for a bank profile.
func applyProfileDefaults(p *Profile) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]string)
	}
	if len(p.ManifestPatterns) == 0 && p.Code != "" {
		p.ManifestPatterns = []string{p.Code + "_*.csv", p.Code + "_*.xlsx"}
	}

	csv := &p.CSVSettings
	if csv.Delimiter == "" {
		csv.Delimiter = ","
	}
	if csv.HeaderRows == 0 {
		csv.HeaderRows = 1
	}
	if csv.DataStartRow == 0 {
		csv.DataStartRow = csv.HeaderRows + 1
	}
	if csv.Encoding == "" {
		csv.Encoding = "UTF-8"
	}

	if p.XLSXSettings.HeaderRow == 0 {
		p.XLSXSettings.HeaderRow = 1
	}

	c := &p.Columns
	setDefault(&c.TransactionID, DefaultTransactionIDColumn)
	setDefault(&c.BatchID, DefaultBatchIDColumn)
	setDefault(&c.BatchName, DefaultBatchNameColumn)
	setDefault(&c.Amount, DefaultAmountColumn)
	setDefault(&c.ProcessedAt, DefaultProcessedAtColumn)
	setDefault(&c.CurrencyType, DefaultCurrencyTypeColumn)
	setDefault(&c.MICR, DefaultMICRColumn)
	setDefault(&c.FrontImage, DefaultFrontImageColumn)
	setDefault(&c.BackImage, DefaultBackImageColumn)
	setDefault(&c.ImageDate, DefaultImageDateColumn)
	if len(c.TimeLayouts) == 0 {
		c.TimeLayouts = append([]string(nil), DefaultTimeLayouts...)
	}
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// validateProfile checks the settings a manifest cannot be read without.
func validateProfile(p *Profile) error {
	if strings.TrimSpace(p.Dialect) == "" {
		return fmt.Errorf("profile %q: dialect is required", p.Code)
	}
	if p.CSVSettings.DataStartRow <= p.CSVSettings.HeaderRows {
		return fmt.Errorf("profile %q: data_start_row %d must follow the %d header row(s)",
			p.Code, p.CSVSettings.DataStartRow, p.CSVSettings.HeaderRows)
	}
	for _, pattern := range p.ManifestPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("profile %q: invalid manifest pattern %q: %w", p.Code, pattern, err)
		}
	}
	for _, rule := range append(append([]TransformationRule(nil), p.AttributeTransforms...), p.ColumnTransforms...) {
		if rule.Field == "" {
			return fmt.Errorf("profile %q: transformation rule without a field", p.Code)
		}
	}
	return nil
}
