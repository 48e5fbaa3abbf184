// =============================================================================
// X9 Cash Letter Encoder - Converter Module
// =============================================================================
//
// This module exports one manifest. It orchestrates the whole pipeline for a
// single file, from reading the manifest to archiving the exported X9 file.
//
// EXPORT PIPELINE:
//   1. Load the manifest into batches with the bank profile's column mapping
//   2. Resolve the dialect configuration from the profile attributes
//   3. Validate every transaction so all problems are reported at once
//   4. Assemble and encode the cash letter file
//   5. Write the file and its XML receipt
//   6. Stamp every batch in the export history
//   7. Archive the manifest and the export
//
// FAILURE POLICY:
//   A manifest is exported whole or not at all. On failure nothing is written
//   to the output directory except an error log, and the manifest stays in the
//   input directory.
//
// CONCURRENCY:
//   Run one Converter per manifest. Converters may run concurrently when they
//   share a sequence.Allocator, which serializes allocation per counter.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/assembler"
	"github.com/ginjaninja78/x9-cash-letter/internal/config"
	"github.com/ginjaninja78/x9-cash-letter/internal/database"
	"github.com/ginjaninja78/x9-cash-letter/internal/dialect"
	"github.com/ginjaninja78/x9-cash-letter/internal/imaging"
	"github.com/ginjaninja78/x9-cash-letter/internal/manifest"
	"github.com/ginjaninja78/x9-cash-letter/internal/secure"
	"github.com/ginjaninja78/x9-cash-letter/internal/sequence"
	"github.com/ginjaninja78/x9-cash-letter/internal/transform"
	"github.com/ginjaninja78/x9-cash-letter/internal/validation"
	"github.com/ginjaninja78/x9-cash-letter/internal/xmlwriter"
	"github.com/ginjaninja78/x9-cash-letter/pkg/utils"
)

// OutputExtension is appended to exported file names.
const OutputExtension = ".x937"

// Pipeline stages, reported as Result.ErrorType.
const (
	StageManifest   = "manifest"
	StageProfile    = "profile"
	StageValidation = "validation"
	StageAssembly   = "assembly"
	StageOutput     = "output"
	StageHistory    = "history"
)

// StageError records the pipeline stage an export failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of exporting a single manifest.
type Result struct {
	// FilePath is the manifest that was processed.
	FilePath string

	// Profile is the code of the bank profile used.
	Profile string

	// Dialect is the dialect the file was encoded in.
	Dialect string

	// OutputFile is the exported X9 file. Empty on failure and on dry runs.
	OutputFile string

	// ReceiptFile is the XML receipt, when one was written.
	ReceiptFile string

	// ErrorLog is the error log written for a failed export.
	ErrorLog string

	// Success indicates whether the export succeeded.
	Success bool

	// Error contains the error if the export failed.
	Error error

	// ErrorType is the stage the export failed in.
	ErrorType string

	// Messages are the operator-facing error lines of a failed export.
	Messages []string

	// Stats contains export statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about one export.
type ProcessingStats struct {
	Rows             int
	Batches          int
	Transactions     int
	Bundles          int
	Records          int
	Bytes            int
	ValidationErrors int
	Warnings         int
	TotalAmount      decimal.Decimal
	CashLetterID     string
	FileIDModifier   string
	ProcessingTime   time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Options carries the run-wide collaborators shared by every Converter of
// an export run.
type Options struct {
	// Main is the application configuration.
	Main *config.MainConfig

	// Registry resolves dialect names. Nil uses the built-in dialects.
	Registry *dialect.Registry

	// Allocator issues sequence numbers. Required.
	Allocator *sequence.Allocator

	// History stamps exported batches. Nil skips history.
	History *database.ExportLog

	// Sealer opens sealed MICR lines and attributes. Nil accepts plain
	// values only.
	Sealer *secure.Sealer

	// Files archives manifests and exports. Nil skips archival.
	Files *utils.FileManager

	// Logger receives progress events. Nil discards them.
	Logger *slog.Logger

	// RunID identifies the export run in file names and history.
	RunID string

	// ExportedAt is the file creation time. Defaults to now.
	ExportedAt time.Time

	// BusinessDate is the deposit day. Defaults to ExportedAt.
	BusinessDate time.Time

	// DryRun assembles the file but writes nothing.
	DryRun bool
}

// Converter exports a single manifest.
type Converter struct {
	path    string
	profile *config.Profile
	opts    Options
	logger  *slog.Logger
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a Converter for the manifest at path.
//
// PARAMETERS:
//   - path: the manifest to export
//   - profile: the bank profile the manifest belongs to
//   - opts: the run-wide collaborators
func New(path string, profile *config.Profile, opts Options) *Converter {
	if opts.Registry == nil {
		opts.Registry = dialect.NewRegistry()
	}
	if opts.ExportedAt.IsZero() {
		opts.ExportedAt = time.Now()
	}
	if opts.BusinessDate.IsZero() {
		opts.BusinessDate = opts.ExportedAt
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Converter{
		path:    path,
		profile: profile,
		opts:    opts,
		logger:  logger.With("file", filepath.Base(path), "profile", profile.Code, "run_id", opts.RunID),
	}
}

// =============================================================================
// PLANNING
// =============================================================================

// Plan is a manifest that was loaded, resolved and validated.
type Plan struct {
	Manifest   *manifest.Manifest
	Dialect    *dialect.Dialect
	Config     *dialect.Configuration
	Validation *validation.ValidationResult
}

// Plan loads the manifest, resolves the profile and validates every
// transaction. A manifest that fails validation still yields a Plan; check
// Plan.Validation.IsValid.
func (c *Converter) Plan(ctx context.Context) (*Plan, error) {
	d, err := c.opts.Registry.Lookup(c.profile.Dialect)
	if err != nil {
		return nil, &StageError{Stage: StageProfile, Err: err}
	}

	cfg, err := ResolveConfiguration(c.profile, c.opts.Sealer)
	if err != nil {
		return nil, &StageError{Stage: StageProfile, Err: err}
	}

	loader, err := manifest.NewLoader(c.profile, c.logger)
	if err != nil {
		return nil, &StageError{Stage: StageProfile, Err: err}
	}
	m, err := loader.Load(ctx, c.path)
	if err != nil {
		return nil, &StageError{Stage: StageManifest, Err: err}
	}
	if m.Transactions() == 0 {
		return nil, &StageError{Stage: StageManifest, Err: assembler.ErrNoTransactions}
	}

	options := validation.DefaultValidationOptions()
	options.CurrencyTypes = cfg.CurrencyTypes
	options.Decrypter = c.opts.Sealer

	return &Plan{
		Manifest:   m,
		Dialect:    d,
		Config:     cfg,
		Validation: validation.Validate(m.Batches, options),
	}, nil
}

// ResolveConfiguration applies the profile's attribute transforms and
// resolves the dialect configuration. Sealed attribute values are opened
// with sealer.
func ResolveConfiguration(profile *config.Profile, sealer *secure.Sealer) (*dialect.Configuration, error) {
	attrs := dialect.Attributes(profile.Attributes).Clone()

	t, err := transform.New(profile.AttributeTransforms)
	if err != nil {
		return nil, fmt.Errorf("invalid attribute transforms: %w", err)
	}
	if err := t.Apply(attrs); err != nil {
		return nil, fmt.Errorf("failed to transform attributes: %w", err)
	}

	cfg, err := dialect.Resolve(attrs, sealer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profile %q: %w", profile.Code, err)
	}
	return cfg, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the export pipeline for the manifest.
func (c *Converter) Run(ctx context.Context) Result {
	start := time.Now()
	result := Result{
		FilePath: c.path,
		Profile:  c.profile.Code,
		Dialect:  c.profile.Dialect,
	}
	defer func() {
		result.Stats.ProcessingTime = time.Since(start)
	}()

	c.logger.Info("export.started", "dry_run", c.opts.DryRun)

	// =========================================================================
	// STEP 1-3: LOAD, RESOLVE AND VALIDATE
	// =========================================================================

	plan, err := c.Plan(ctx)
	if err != nil {
		c.fail(&result, err, nil, nil)
		return result
	}

	m := plan.Manifest
	result.Dialect = plan.Dialect.Name
	result.Stats.Rows = m.Rows
	result.Stats.Batches = len(m.Batches)
	result.Stats.Transactions = m.Transactions()
	result.Stats.ValidationErrors = plan.Validation.ErrorCount
	result.Stats.Warnings = plan.Validation.WarningCount

	for _, w := range plan.Validation.Errors {
		if !w.IsFatal() {
			c.logger.Warn("validation.warning", "transaction_id", w.TransactionID, "message", w.Message)
		}
	}
	if !plan.Validation.IsValid {
		err := fmt.Errorf("validation failed with %d error(s)", plan.Validation.ErrorCount)
		c.fail(&result, &StageError{Stage: StageValidation, Err: err}, plan.Validation.Errors, m)
		return result
	}

	c.warnPreviousExports(ctx, m)

	// =========================================================================
	// STEP 4: ASSEMBLE
	// =========================================================================

	a := assembler.New(plan.Dialect, plan.Config, c.opts.Allocator,
		imaging.NewTIFFPipeline(c.templatesDir(), c.logger),
		assembler.Options{
			ExportedAt:   c.opts.ExportedAt,
			BusinessDate: c.opts.BusinessDate,
			Decrypter:    c.opts.Sealer,
			Logger:       c.logger,
		})

	built, err := a.BuildFile(ctx, m.Batches)
	if err != nil {
		result.Messages = built.Errors
		c.fail(&result, &StageError{Stage: StageAssembly, Err: err}, validation.Collect(err), m)
		return result
	}

	result.Stats.Bundles = built.Summary.BundleCount
	result.Stats.Records = built.Summary.RecordCount
	result.Stats.Bytes = len(built.Data)
	result.Stats.TotalAmount = built.Summary.TotalAmount
	result.Stats.CashLetterID = built.Summary.CashLetterID
	result.Stats.FileIDModifier = built.Summary.FileIDModifier

	if c.opts.DryRun {
		c.logger.Info("export.dry_run",
			"transactions", result.Stats.Transactions,
			"bundles", result.Stats.Bundles,
			"total_amount", result.Stats.TotalAmount.StringFixed(2),
		)
		result.Success = true
		return result
	}

	// =========================================================================
	// STEP 5: WRITE OUTPUT
	// =========================================================================

	outputPath := filepath.Join(c.opts.Main.OutputDir, c.outputFileName(built))
	if err := utils.WriteOutputFile(outputPath, built.Data); err != nil {
		c.fail(&result, &StageError{Stage: StageOutput, Err: err}, nil, m)
		return result
	}
	result.OutputFile = outputPath
	c.logger.Info("export.written", "output", outputPath, "bytes", len(built.Data))

	if c.opts.Main.WriteReceipt {
		receiptPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".xml"
		err := xmlwriter.WriteFile(receiptPath, built, xmlwriter.Receipt{
			RunID:    c.opts.RunID,
			Profile:  c.profile.Code,
			FileName: filepath.Base(outputPath),
			Bytes:    len(built.Data),
		})
		if err != nil {
			c.logger.Warn("receipt.failed", "error", err)
		} else {
			result.ReceiptFile = receiptPath
		}
	}

	// =========================================================================
	// STEP 6: EXPORT HISTORY
	// =========================================================================

	if err := c.recordHistory(ctx, built, filepath.Base(outputPath)); err != nil {
		// The file is valid; keep it but leave the manifest in place so the
		// operator notices.
		c.fail(&result, &StageError{Stage: StageHistory, Err: err}, nil, m)
		return result
	}

	// =========================================================================
	// STEP 7: ARCHIVE
	// =========================================================================

	c.archive(outputPath, result.ReceiptFile)

	result.Success = true
	c.logger.Info("export.completed",
		"output", filepath.Base(outputPath),
		"cash_letter_id", result.Stats.CashLetterID,
		"transactions", result.Stats.Transactions,
		"total_amount", result.Stats.TotalAmount.StringFixed(2),
	)
	return result
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// fail marks result as failed and writes the error log.
func (c *Converter) fail(result *Result, err error, verrs []*validation.ValidationError, m *manifest.Manifest) {
	result.Success = false
	result.Error = err

	var stage *StageError
	if errors.As(err, &stage) {
		result.ErrorType = stage.Stage
	}
	if len(result.Messages) == 0 {
		for _, ve := range verrs {
			if ve.IsFatal() {
				result.Messages = append(result.Messages, ve.Error())
			}
		}
	}
	if len(result.Messages) == 0 {
		result.Messages = []string{err.Error()}
	}

	c.logger.Error("export.failed", "stage", result.ErrorType, "error", err)

	if c.opts.DryRun || c.opts.Main == nil {
		return
	}
	logPath, werr := utils.WriteErrorLog(errorEntries(c.path, result.ErrorType, err, verrs, m), c.opts.Main.OutputDir, c.path)
	if werr != nil {
		c.logger.Warn("error_log.failed", "error", werr)
		return
	}
	result.ErrorLog = logPath
}

// errorEntries turns a failure into error log entries: one per validation
// error, or one for the failure itself.
func errorEntries(path, stage string, err error, verrs []*validation.ValidationError, m *manifest.Manifest) []utils.ErrorLogEntry {
	now := time.Now()
	file := filepath.Base(path)

	batchOf := make(map[string]string)
	if m != nil {
		for _, b := range m.Batches {
			for _, tx := range b.Transactions {
				batchOf[tx.ID] = b.ID
			}
		}
	}

	var entries []utils.ErrorLogEntry
	for _, ve := range verrs {
		message := ve.Message
		if ve.Err != nil {
			message += ": " + ve.Err.Error()
		}
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:     now,
			FileName:      file,
			ErrorType:     stage + "/" + ve.Rule,
			ErrorMessage:  message,
			FieldName:     ve.Field,
			FieldValue:    ve.Value,
			TransactionID: ve.TransactionID,
			BatchID:       batchOf[ve.TransactionID],
		})
	}
	if len(entries) > 0 {
		return entries
	}

	entry := utils.ErrorLogEntry{
		Timestamp:    now,
		FileName:     file,
		ErrorType:    stage,
		ErrorMessage: err.Error(),
	}
	var rowErr *manifest.RowError
	if errors.As(err, &rowErr) {
		entry.RowNumber = rowErr.Row
		entry.FieldName = rowErr.Column
		entry.ErrorMessage = rowErr.Err.Error()
	}
	return []utils.ErrorLogEntry{entry}
}

// warnPreviousExports logs batches that already appear in the export
// history. Re-exporting is allowed; a bank rejects the duplicate items, not
// the file.
func (c *Converter) warnPreviousExports(ctx context.Context, m *manifest.Manifest) {
	if c.opts.History == nil {
		return
	}
	for _, b := range m.Batches {
		previous, err := c.opts.History.ForBatch(ctx, b.ID)
		if err != nil {
			c.logger.Warn("history.lookup_failed", "batch_id", b.ID, "error", err)
			continue
		}
		if len(previous) > 0 {
			last := previous[len(previous)-1]
			c.logger.Warn("batch.previously_exported",
				"batch_id", b.ID,
				"exports", len(previous),
				"last_file", last.FileName,
				"last_exported_at", last.ExportedAt,
			)
		}
	}
}

// recordHistory stamps every batch of the export with the file name.
func (c *Converter) recordHistory(ctx context.Context, built *assembler.Result, fileName string) error {
	if c.opts.History == nil {
		return nil
	}

	counts := make(map[string]int)
	totals := make(map[string]decimal.Decimal)
	for _, item := range built.Items {
		counts[item.BatchID]++
		totals[item.BatchID] = totals[item.BatchID].Add(item.Amount)
	}

	entries := make([]database.ExportEntry, 0, len(built.Summary.BatchIDs))
	for _, id := range built.Summary.BatchIDs {
		entries = append(entries, database.ExportEntry{
			RunID:        c.opts.RunID,
			BatchID:      id,
			Dialect:      built.Summary.Dialect,
			FileName:     fileName,
			ItemCount:    counts[id],
			TotalAmount:  totals[id],
			BusinessDate: c.opts.BusinessDate,
			ExportedAt:   c.opts.ExportedAt,
		})
	}
	return c.opts.History.Record(ctx, entries...)
}

// archive moves the manifest and copies the export and receipt. Archival
// failures are logged; the export itself already succeeded.
func (c *Converter) archive(outputPath, receiptPath string) {
	if c.opts.Files == nil {
		return
	}

	for _, p := range []string{outputPath, receiptPath} {
		if p == "" {
			continue
		}
		if _, err := c.opts.Files.ArchiveOutputFile(p); err != nil {
			c.logger.Warn("archive.output_failed", "path", p, "error", err)
		}
	}

	archived, err := c.opts.Files.ArchiveInputFile(c.path)
	if err != nil {
		c.logger.Warn("archive.input_failed", "error", err)
		return
	}
	c.logger.Debug("archive.input", "path", archived)
}

// outputFileName names the export from the configured format.
func (c *Converter) outputFileName(built *assembler.Result) string {
	params := map[string]string{
		"profile":    c.profile.Code,
		"dialect":    built.Summary.Dialect,
		"modifier":   built.Summary.FileIDModifier,
		"cashletter": built.Summary.CashLetterID,
	}
	if c.opts.RunID != "" {
		params["uuid"] = c.opts.RunID
	}
	return utils.GenerateOutputFileName(c.opts.Main.OutputNameFormat, c.opts.ExportedAt, params, OutputExtension)
}

func (c *Converter) templatesDir() string {
	if c.opts.Main == nil {
		return ""
	}
	return c.opts.Main.TemplatesDir
}
