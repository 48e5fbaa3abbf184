// =============================================================================
// X9 Cash Letter Encoder - Transformation Engine
// =============================================================================
//
// This package normalises raw values before they reach the encoder. Bank
// profiles attach ordered actions to manifest columns (a scanner that writes
// "$1,234.50" or pads check numbers with spaces) and to dialect attributes
// (a routing number stored without its leading zero).
//
// RULE ORDER:
//   Rules run in the order they are declared. A later rule sees the output of
//   an earlier one, including for "if_empty_use_field".
//
// =============================================================================

package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ginjaninja78/x9-cash-letter/internal/config"
)

var (
	digitsPattern      = regexp.MustCompile(`\d+`)
	specialPattern     = regexp.MustCompile(`[^a-zA-Z0-9]`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	amountNoisePattern = regexp.MustCompile(`[$,\s]`)
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies a profile's transformation rules.
type Transformer struct {
	rules []rule
}

type rule struct {
	field   string
	actions []action
}

type action struct {
	config.TransformationAction
	re *regexp.Regexp
}

// New compiles rules. Unknown action types and invalid patterns are
// reported here rather than on the first row that uses them.
func New(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{}
	for _, r := range rules {
		compiled := rule{field: r.Field}
		for _, a := range r.Actions {
			if !knownAction(a.Type) {
				return nil, fmt.Errorf("field '%s': unknown transformation type: %s", r.Field, a.Type)
			}
			c := action{TransformationAction: a}
			if a.Type == "regex_replace" && a.Find != "" {
				re, err := regexp.Compile(a.Find)
				if err != nil {
					return nil, fmt.Errorf("field '%s': invalid regex pattern: %w", r.Field, err)
				}
				c.re = re
			}
			compiled.actions = append(compiled.actions, c)
		}
		t.rules = append(t.rules, compiled)
	}
	return t, nil
}

// Len returns the number of rules.
func (t *Transformer) Len() int {
	return len(t.rules)
}

// Transform applies every rule for fieldName to value.
//
// PARAMETERS:
//   - fieldName: the column header or attribute key, matched ignoring case
//   - value: the current value
//   - row: every field of the row, for actions that read other fields
func (t *Transformer) Transform(fieldName, value string, row map[string]string) (string, error) {
	result := value
	for _, r := range t.rules {
		if !strings.EqualFold(r.field, fieldName) {
			continue
		}
		var err error
		if result, err = r.apply(result, row); err != nil {
			return "", fmt.Errorf("field '%s': %w", fieldName, err)
		}
	}
	return result, nil
}

// Apply runs every rule over row in place. A rule naming a field the row
// does not have starts from an empty value, so defaults can add fields.
func (t *Transformer) Apply(row map[string]string) error {
	for _, r := range t.rules {
		key := lookupKey(row, r.field)
		value, err := r.apply(row[key], row)
		if err != nil {
			return fmt.Errorf("field '%s': %w", r.field, err)
		}
		row[key] = value
	}
	return nil
}

func (r rule) apply(value string, row map[string]string) (string, error) {
	for _, a := range r.actions {
		var err error
		if value, err = a.apply(value, row); err != nil {
			return "", fmt.Errorf("transformation '%s' failed: %w", a.Type, err)
		}
	}
	return value, nil
}

// lookupKey returns the key of row equal to field ignoring case, or field
// itself when the row has none.
func lookupKey(row map[string]string, field string) string {
	if _, ok := row[field]; ok {
		return field
	}
	for k := range row {
		if strings.EqualFold(k, field) {
			return k
		}
	}
	return field
}

// =============================================================================
// ACTIONS
// =============================================================================

func knownAction(name string) bool {
	switch name {
	case "prepend_string", "append_string", "trim", "trim_left", "trim_right",
		"uppercase", "lowercase", "title_case", "replace", "regex_replace", "substring",
		"pad_zeros_to_length", "ensure_length", "remove_leading_zeros", "format_date",
		"format_amount", "lookup", "lookup_with_default", "if_empty_use_default",
		"if_empty_use_field", "extract_digits", "remove_special_chars", "normalize_whitespace":
		return true
	}
	return false
}

// apply runs one action.
//
// EXAMPLES:
//   pad_zeros_to_length "9":       "71000013"    -> "071000013"
//   format_date "01/02/2006|2006-01-02": "03/04/2026" -> "2026-03-04"
//   format_amount:                 "($1,234.50)" -> "-1234.50"
//   substring "0,4":               "12345678"    -> "1234"
func (a action) apply(value string, row map[string]string) (string, error) {
	switch a.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "prepend_string":
		return a.Value + value, nil

	case "append_string":
		return value + a.Value, nil

	case "trim":
		return strings.TrimSpace(value), nil

	case "trim_left":
		if a.Value != "" {
			return strings.TrimLeft(value, a.Value), nil
		}
		return strings.TrimLeft(value, " \t\n\r"), nil

	case "trim_right":
		if a.Value != "" {
			return strings.TrimRight(value, a.Value), nil
		}
		return strings.TrimRight(value, " \t\n\r"), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "title_case":
		return cases.Title(language.AmericanEnglish).String(strings.ToLower(value)), nil

	case "replace":
		if a.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, a.Find, a.Value), nil

	case "regex_replace":
		if a.re == nil {
			return value, nil
		}
		return a.re.ReplaceAllString(value, a.Value), nil

	case "substring":
		// Value is "start,end", zero based and end exclusive.
		parts := strings.Split(a.Value, ",")
		if len(parts) != 2 {
			return "", fmt.Errorf("substring needs \"start,end\", got %q", a.Value)
		}
		start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			return "", fmt.Errorf("substring needs numeric bounds, got %q", a.Value)
		}
		if start < 0 {
			start = 0
		}
		if end > len(value) {
			end = len(value)
		}
		if start >= end {
			return "", nil
		}
		return value[start:end], nil

	// =========================================================================
	// NUMERIC FORMATTING
	// =========================================================================

	case "pad_zeros_to_length":
		n, err := length(a.Value)
		if err != nil {
			return "", err
		}
		return PadLeft(value, n, '0'), nil

	case "ensure_length":
		n, err := length(a.Value)
		if err != nil {
			return "", err
		}
		if len(value) > n {
			return value[:n], nil
		}
		return PadLeft(value, n, '0'), nil

	case "remove_leading_zeros":
		result := strings.TrimLeft(value, "0")
		if result == "" {
			return "0", nil
		}
		return result, nil

	case "format_amount":
		return formatAmount(value)

	// =========================================================================
	// DATE/TIME CONVERSIONS
	// =========================================================================

	case "format_date":
		parts := strings.Split(a.Value, "|")
		if len(parts) != 2 {
			return "", fmt.Errorf("format_date needs \"input|output\" layouts, got %q", a.Value)
		}
		if strings.TrimSpace(value) == "" {
			return value, nil
		}
		t, err := time.Parse(strings.TrimSpace(parts[0]), strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("invalid date %q: %w", value, err)
		}
		return t.Format(strings.TrimSpace(parts[1])), nil

	// =========================================================================
	// LOOKUPS AND DEFAULTS
	// =========================================================================

	case "lookup":
		if replacement, ok := a.LookupTable[value]; ok {
			return replacement, nil
		}
		return value, nil

	case "lookup_with_default":
		if replacement, ok := a.LookupTable[value]; ok {
			return replacement, nil
		}
		return a.Value, nil

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return a.Value, nil
		}
		return value, nil

	case "if_empty_use_field":
		if strings.TrimSpace(value) == "" {
			if other, ok := row[lookupKey(row, a.Value)]; ok {
				return other, nil
			}
		}
		return value, nil

	// =========================================================================
	// CLEANUP
	// =========================================================================

	case "extract_digits":
		return strings.Join(digitsPattern.FindAllString(value, -1), ""), nil

	case "remove_special_chars":
		return specialPattern.ReplaceAllString(value, ""), nil

	case "normalize_whitespace":
		return strings.TrimSpace(whitespacePattern.ReplaceAllString(value, " ")), nil
	}

	return "", fmt.Errorf("unknown transformation type: %s", a.Type)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func length(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("length must be a positive integer, got %q", v)
	}
	return n, nil
}

// formatAmount strips currency symbols and grouping and renders the amount
// with two decimals. Parentheses mark a negative amount.
func formatAmount(value string) (string, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return s, nil
	}

	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if negative {
		s = s[1 : len(s)-1]
	}
	s = amountNoisePattern.ReplaceAllString(s, "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q", value)
	}
	if negative {
		d = d.Neg()
	}
	return d.StringFixed(2), nil
}

// PadLeft pads s on the left with padChar up to length.
func PadLeft(s string, length int, padChar rune) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-len(s)) + s
}
