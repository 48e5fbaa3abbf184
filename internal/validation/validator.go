// =============================================================================
// X9 Cash Letter Encoder - Validation Engine
// =============================================================================
//
// This module validates deposit data before and during an export. The
// assembler raises ValidationError for items it cannot encode; the Validator
// runs the same checks up front so an operator sees every problem in a batch
// at once instead of the first one.
//
// VALIDATION LEVELS:
//   1. Transaction-level: amount, images, MICR line, currency type
//   2. Document-level: duplicate transaction IDs
//
// ERROR HANDLING:
//   - Errors are collected, not returned one at a time
//   - Each error names the transaction, the field and the violated rule
//   - Warnings are reported but do not block the export
//   - MICR values are never copied into errors
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/imaging"
	"github.com/ginjaninja78/x9-cash-letter/internal/micr"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Messages shared with the assembler. Operators search logs for these.
const (
	MsgMissingImages = "Transaction Does Not Contain Two Valid Image Records (Front and Back Check Scans)"
	MsgCurrencyType  = "One or more transactions is not of a selected Check type."
)

// MaxItemAmount is the largest amount a type 25 record can carry.
var MaxItemAmount = decimal.RequireFromString("99999999.99")

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation error.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Field is the transaction field that failed validation.
	Field string

	// Value is the offending value. Left empty for sensitive fields.
	Value string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string

	// TransactionID is the ID of the transaction containing the error.
	TransactionID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", strings.ToUpper(e.severity()))
	if e.TransactionID != "" {
		fmt.Fprintf(&b, " Transaction %s,", e.TransactionID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " Field '%s':", e.Field)
	}
	fmt.Fprintf(&b, " %s", e.Message)
	if e.Value != "" {
		fmt.Fprintf(&b, " (value: '%s')", e.Value)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error blocks the export.
func (e *ValidationError) IsFatal() bool {
	return e.severity() == SeverityError
}

func (e *ValidationError) severity() string {
	if e.Severity == "" {
		return SeverityError
	}
	return e.Severity
}

// MissingImages builds the error raised for a transaction without both
// check sides.
func MissingImages(transactionID string, cause error) *ValidationError {
	return &ValidationError{
		Severity:      SeverityError,
		Field:         "Images",
		Rule:          "two_images",
		Message:       MsgMissingImages,
		TransactionID: transactionID,
		Err:           cause,
	}
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all validation errors (including warnings).
	Errors []*ValidationError

	// ErrorCount is the number of fatal errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// TransactionsValidated is the total number of transactions validated.
	TransactionsValidated int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Decrypter opens sealed MICR lines.
type Decrypter interface {
	Decrypt(value string) (string, error)
}

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// StopOnFirstError stops validation after the first fatal error.
	StopOnFirstError bool

	// TreatWarningsAsErrors treats warnings as fatal errors.
	TreatWarningsAsErrors bool

	// CurrencyTypes is the allowed set. Empty allows every type.
	CurrencyTypes []string

	// Decrypter opens MICR lines so they can be parsed. Nil skips the
	// MICR parse and only checks presence.
	Decrypter Decrypter

	// CheckImageFormat requires images to be TIFF, CCITT Group 4.
	CheckImageFormat bool

	// CustomValidators run after the built-in rules. Each returns an error
	// message, or "" when the transaction passes.
	CustomValidators map[string]CustomValidatorFunc
}

// CustomValidatorFunc is a function type for custom validators.
type CustomValidatorFunc func(tx *types.Transaction) string

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		CurrencyTypes:    []string{"check"},
		CheckImageFormat: true,
		CustomValidators: make(map[string]CustomValidatorFunc),
	}
}

// Validator performs validation on transactions.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a new Validator with the default options.
func NewValidator() *Validator {
	return &Validator{options: DefaultValidationOptions()}
}

// NewValidatorWithOptions creates a new Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate validates every transaction of batches with the given options.
func Validate(batches []types.Batch, options ValidationOptions) *ValidationResult {
	var all []types.Transaction
	for _, b := range batches {
		all = append(all, b.Transactions...)
	}
	return NewValidatorWithOptions(options).ValidateAll(all)
}

// ValidateAll validates all transactions and returns a detailed result.
func (v *Validator) ValidateAll(transactions []types.Transaction) *ValidationResult {
	result := &ValidationResult{
		IsValid:               true,
		Errors:                make([]*ValidationError, 0),
		TransactionsValidated: len(transactions),
	}

	add := func(errs []*ValidationError) bool {
		for _, err := range errs {
			result.Errors = append(result.Errors, err)

			if err.IsFatal() {
				result.ErrorCount++
				result.IsValid = false
				if v.options.StopOnFirstError {
					return false
				}
			} else {
				result.WarningCount++
				if v.options.TreatWarningsAsErrors {
					result.IsValid = false
				}
			}
		}
		return true
	}

	seen := make(map[string]bool, len(transactions))
	for i := range transactions {
		tx := &transactions[i]

		var errs []*ValidationError
		if tx.ID != "" && seen[tx.ID] {
			errs = append(errs, &ValidationError{
				Severity:      SeverityError,
				Field:         "ID",
				Value:         tx.ID,
				Rule:          "unique",
				Message:       "Transaction ID appears more than once",
				TransactionID: tx.ID,
			})
		}
		seen[tx.ID] = true

		errs = append(errs, v.ValidateTransaction(tx)...)
		if !add(errs) {
			return result
		}
	}

	return result
}

// ValidateTransaction validates a single transaction.
func (v *Validator) ValidateTransaction(tx *types.Transaction) []*ValidationError {
	var errs []*ValidationError

	fail := func(severity, field, value, rule, message string, cause error) {
		errs = append(errs, &ValidationError{
			Severity:      severity,
			Field:         field,
			Value:         value,
			Rule:          rule,
			Message:       message,
			TransactionID: tx.ID,
			Err:           cause,
		})
	}

	if strings.TrimSpace(tx.ID) == "" {
		fail(SeverityError, "ID", "", "required", "Transaction ID is empty", nil)
	}

	// =========================================================================
	// AMOUNT
	// =========================================================================

	switch {
	case tx.Amount.IsNegative():
		fail(SeverityError, "Amount", tx.Amount.String(), "non_negative", "Amount is negative", nil)
	case tx.Amount.IsZero():
		fail(SeverityWarning, "Amount", tx.Amount.String(), "non_zero", "Amount is zero", nil)
	case !tx.Amount.Equal(tx.Amount.Truncate(2)):
		fail(SeverityError, "Amount", tx.Amount.String(), "whole_cents", "Amount has more precision than whole cents", nil)
	case tx.Amount.GreaterThan(MaxItemAmount):
		fail(SeverityError, "Amount", tx.Amount.String(), "max_amount",
			fmt.Sprintf("Amount exceeds the item maximum of %s", MaxItemAmount.StringFixed(2)), nil)
	}

	if tx.ProcessedAt.IsZero() {
		fail(SeverityWarning, "ProcessedAt", "", "required", "Processed date is empty; the item sorts first", nil)
	}

	// =========================================================================
	// CURRENCY TYPE
	// =========================================================================

	if len(v.options.CurrencyTypes) > 0 && !allowed(v.options.CurrencyTypes, tx.CurrencyType) {
		fail(SeverityError, "CurrencyType", tx.CurrencyType, "currency_type", MsgCurrencyType, nil)
	}

	// =========================================================================
	// IMAGES
	// =========================================================================

	front, back := tx.Sides()
	if front == nil || back == nil {
		errs = append(errs, MissingImages(tx.ID, nil))
	} else if v.options.CheckImageFormat {
		for _, img := range []*types.Image{front, back} {
			if _, err := imageFormat(img.Data); err != nil {
				fail(SeverityError, "Images", img.Side.String(), "tiff_g4", "Image is not TIFF Group 4", err)
			}
		}
	}

	// =========================================================================
	// MICR
	// =========================================================================

	if strings.TrimSpace(tx.MICREncrypted) == "" {
		fail(SeverityError, "MICR", "", "required", "MICR line is empty", nil)
	} else if v.options.Decrypter != nil {
		line, err := v.options.Decrypter.Decrypt(tx.MICREncrypted)
		if err != nil {
			fail(SeverityError, "MICR", "", "decrypt", "MICR line could not be decrypted", err)
		} else if _, err := micr.Parse(line); err != nil {
			fail(SeverityError, "MICR", "", "micr_format", "MICR line could not be parsed", err)
		}
	}

	for name, custom := range v.options.CustomValidators {
		if msg := custom(tx); msg != "" {
			fail(SeverityError, "", "", name, msg, nil)
		}
	}

	return errs
}

func imageFormat(data []byte) (int, error) {
	compression, err := imaging.Compression(data)
	if err != nil {
		return 0, err
	}
	if compression != imaging.CompressionGroup4 {
		return compression, fmt.Errorf("%w: compression code %d", imaging.ErrNotGroup4, compression)
	}
	return compression, nil
}

func allowed(set []string, currencyType string) bool {
	currencyType = strings.ToLower(strings.TrimSpace(currencyType))
	for _, s := range set {
		if strings.ToLower(s) == currencyType {
			return true
		}
	}
	return false
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
//
// PARAMETERS:
//   - errs: The validation errors to format.
//
// RETURNS:
//   - A formatted string containing all errors.
func FormatErrors(errs []*ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Validation completed with %d error(s):\n\n", len(errs))
	for i, err := range errs {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, err.Error())
	}

	return builder.String()
}

// Collect extracts every ValidationError from err's chain.
func Collect(err error) []*ValidationError {
	var out []*ValidationError
	for err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			break
		}
		out = append(out, ve)
		err = ve.Err
	}
	return out
}

// WriteErrorLog writes validation errors to a log file, creating its
// directory if needed.
func WriteErrorLog(errs []*ValidationError, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create error log directory: %w", err)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Validation run at %s\n\n", time.Now().UTC().Format(time.RFC3339))
	builder.WriteString(FormatErrors(errs))

	if err := os.WriteFile(filePath, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}
