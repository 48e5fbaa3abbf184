// =============================================================================
// X9 Cash Letter Encoder - Export Command
// =============================================================================
//
// This file defines the 'export' command, the main entry point for turning
// deposit manifests into X9 image cash letter files.
//
// COMMAND USAGE:
//   x9export export [flags]
//
// FLAGS:
//   --dry-run          Assemble and validate without writing anything
//   --file             Export a single manifest instead of the input directory
//   --profile          Export only manifests of one bank profile
//   --business-date    Deposit day (YYYY-MM-DD), defaults to today
//
// PROCESSING FLOW:
//   1. Load configuration and bank profiles
//   2. Open the sequence/history database
//   3. Discover manifests in the input directory
//   4. Export manifests concurrently, at most max_concurrency at a time
//   5. Collect results, write the run summary and prune old archives
//
// =============================================================================

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/x9-cash-letter/internal/config"
	"github.com/ginjaninja78/x9-cash-letter/internal/converter"
	"github.com/ginjaninja78/x9-cash-letter/internal/database"
	"github.com/ginjaninja78/x9-cash-letter/internal/dialect"
	"github.com/ginjaninja78/x9-cash-letter/internal/logger"
	"github.com/ginjaninja78/x9-cash-letter/internal/sequence"
	"github.com/ginjaninja78/x9-cash-letter/pkg/utils"
)

// =============================================================================
// COMMAND-SPECIFIC FLAGS
// =============================================================================

// dryRun assembles files without writing output, history or archives.
var dryRun bool

// filePath is a single manifest to export.
var filePath string

// profileCode restricts the run to one bank profile.
var profileCode string

// businessDate is the deposit day as YYYY-MM-DD.
var businessDate string

// =============================================================================
// EXPORT COMMAND DEFINITION
// =============================================================================

// exportCmd represents the 'export' command.
var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"process"},
	Short:   "Export deposit manifests as X9 cash letter files",
	Long: `The export command scans the input directory for deposit manifests, matches
each one to a bank profile and writes one X9 image cash letter file per
manifest in the profile's dialect.

Manifests are exported concurrently. Sequence numbers, cash letter IDs and
file ID modifiers come from the database, so concurrent and repeated runs
never reuse them.

On success:
  - The X9 file (and its XML receipt) is placed in the output directory
  - Every batch of the manifest is stamped in the export history
  - The manifest is moved to the input archive

On error:
  - An error log is written to the output directory
  - The manifest stays in the input directory
  - Other manifests continue unless continue_on_error is false`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.Context())
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Assemble and validate without writing files, history or archives",
	)

	exportCmd.Flags().StringVar(
		&filePath,
		"file",
		"",
		"Path to a single manifest to export",
	)

	exportCmd.Flags().StringVar(
		&profileCode,
		"profile",
		"",
		"Export only manifests of this bank profile",
	)

	exportCmd.Flags().StringVar(
		&businessDate,
		"business-date",
		"",
		"Deposit business date (YYYY-MM-DD), defaults to today",
	)
}

// =============================================================================
// MAIN EXPORT FUNCTION
// =============================================================================

// runExport orchestrates an export run.
func runExport(parent context.Context) error {
	startTime := time.Now()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	fmt.Println("=== X9 Cash Letter Encoder ===")
	fmt.Println("Loading configuration...")

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	profiles, err := a.loadProfiles()
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d bank profile(s)\n", len(profiles))
	if profileCode != "" && profiles[profileCode] == nil {
		return fmt.Errorf("unknown bank profile %q", profileCode)
	}

	day := startTime
	if businessDate != "" {
		day, err = time.ParseInLocation("2006-01-02", businessDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --business-date %q: expected YYYY-MM-DD", businessDate)
		}
	}

	files := utils.NewFileManager(
		a.main.InputDir,
		a.main.OutputDir,
		a.main.InputArchiveDir,
		a.main.OutputArchiveDir,
	)
	files.UseTimestampSubdirs = a.main.ArchiveByDate
	if !dryRun {
		if err := files.EnsureDirectories(); err != nil {
			return err
		}
	}

	// =========================================================================
	// STEP 2: OPEN THE DATABASE
	// =========================================================================

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := dialect.NewRegistry()
	var (
		alloc   *sequence.Allocator
		history *database.ExportLog
	)
	if dryRun {
		store, err := previewStore(ctx, db, registry, startTime)
		if err != nil {
			return err
		}
		alloc = sequence.NewAllocator(store, logger.L())
	} else {
		alloc = sequence.NewAllocator(sequence.NewSQLiteStore(db), logger.L())
		history = database.NewExportLog(db)
	}

	// =========================================================================
	// STEP 3: DISCOVER MANIFESTS
	// =========================================================================

	fmt.Println("Discovering manifests...")

	var inputFiles []string
	if filePath != "" {
		if !utils.FileExists(filePath) {
			return fmt.Errorf("manifest not found: %s", filePath)
		}
		inputFiles = []string{filePath}
	} else {
		inputFiles, err = files.DiscoverInputFiles("")
		if err != nil {
			return fmt.Errorf("failed to discover manifests: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Println("No manifests found in the input directory.")
		return nil
	}

	fmt.Printf("Found %d manifest(s) to export\n", len(inputFiles))

	// =========================================================================
	// STEP 4: EXPORT MANIFESTS CONCURRENTLY
	// =========================================================================
	// One goroutine per manifest; a semaphore bounds how many run at once.
	// Without continue_on_error the first failure cancels the manifests that
	// have not started yet.

	if dryRun {
		fmt.Println("Dry run: nothing will be written")
	}
	fmt.Println("Exporting manifests...")

	runID := uuid.NewString()
	opts := converter.Options{
		Main:         a.main,
		Registry:     registry,
		Allocator:    alloc,
		History:      history,
		Sealer:       a.sealer,
		Files:        files,
		Logger:       logger.L(),
		RunID:        runID,
		ExportedAt:   startTime,
		BusinessDate: day,
		DryRun:       dryRun,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan converter.Result, len(inputFiles))
	sem := make(chan struct{}, a.main.MaxConcurrency)

	for _, file := range inputFiles {
		wg.Add(1)

		go func(path string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				results <- skipped(path, runCtx.Err())
				return
			}
			if err := runCtx.Err(); err != nil {
				results <- skipped(path, err)
				return
			}

			profile := config.FindProfile(path, profiles)
			if profileCode != "" {
				profile = profiles[profileCode]
				if filePath == "" && !profile.Matches(path) {
					results <- converter.Result{FilePath: path, ErrorType: "skipped"}
					return
				}
			}
			if profile == nil {
				results <- converter.Result{
					FilePath:  path,
					Success:   false,
					ErrorType: converter.StageProfile,
					Error:     fmt.Errorf("no matching bank profile found"),
				}
				if !a.main.ContinueOnError {
					cancel()
				}
				return
			}

			result := converter.New(path, profile, opts).Run(runCtx)
			if !result.Success && !a.main.ContinueOnError {
				cancel()
			}
			results <- result
		}(file)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// STEP 5: COLLECT RESULTS AND GENERATE SUMMARY
	// =========================================================================

	summary := utils.ProcessingSummary{
		RunID:       runID,
		StartTime:   startTime,
		DryRun:      dryRun,
		TotalAmount: decimal.Zero,
	}

	for result := range results {
		name := filepath.Base(result.FilePath)
		if result.ErrorType == "skipped" {
			continue
		}
		summary.TotalFiles++

		if result.Success {
			summary.SuccessfulFiles++
			summary.TotalRows += result.Stats.Rows
			summary.TotalTransactions += result.Stats.Transactions
			summary.TotalAmount = summary.TotalAmount.Add(result.Stats.TotalAmount)
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:    result.FilePath,
				OutputFile:   result.OutputFile,
				ReceiptFile:  result.ReceiptFile,
				Profile:      result.Profile,
				Dialect:      result.Dialect,
				CashLetterID: result.Stats.CashLetterID,
				Rows:         result.Stats.Rows,
				Transactions: result.Stats.Transactions,
				Bundles:      result.Stats.Bundles,
				TotalAmount:  result.Stats.TotalAmount,
				ProcessTime:  result.Stats.ProcessingTime,
			})

			target := result.OutputFile
			if target == "" {
				target = "(dry run)"
			}
			fmt.Printf("  ✓ %s -> %s [%s, %d item(s), %s]\n",
				name, filepath.Base(target), result.Dialect,
				result.Stats.Transactions, result.Stats.TotalAmount.StringFixed(2))
			continue
		}

		summary.FailedFiles++
		summary.ValidationErrors += result.Stats.ValidationErrors
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    result.FilePath,
			ErrorMessage: fmt.Sprint(result.Error),
			ErrorType:    result.ErrorType,
			ErrorLog:     result.ErrorLog,
		})
		fmt.Printf("  ✗ %s: %v\n", name, result.Error)
	}
	summary.EndTime = time.Now()

	// =========================================================================
	// STEP 6: PRINT SUMMARY
	// =========================================================================

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total manifests: %d\n", summary.TotalFiles)
	fmt.Printf("Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Printf("Errors:          %d\n", summary.FailedFiles)
	fmt.Printf("Items:           %d\n", summary.TotalTransactions)
	fmt.Printf("Total amount:    %s\n", summary.TotalAmount.StringFixed(2))
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(startTime))

	if !dryRun {
		if path, err := utils.WriteSummaryLog(summary, a.main.OutputDir); err != nil {
			logger.L().Warn("summary.write_failed", "error", err)
		} else {
			fmt.Printf("Summary:         %s\n", path)
		}

		if days := a.main.ArchiveRetentionDays; days > 0 {
			maxAge := time.Duration(days) * 24 * time.Hour
			for _, dir := range []string{a.main.InputArchiveDir, a.main.OutputArchiveDir} {
				removed, err := utils.CleanOldArchives(dir, maxAge)
				if err != nil {
					logger.L().Warn("archive.cleanup_failed", "dir", dir, "error", err)
					continue
				}
				if removed > 0 {
					logger.L().Info("archive.cleaned", "dir", dir, "removed", removed)
				}
			}
		}
	}

	if summary.FailedFiles > 0 {
		fmt.Println("\nError logs have been written to the output directory.")
		return fmt.Errorf("%d of %d manifest(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("export interrupted: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// skipped is the result of a manifest that never started because the run
// was cancelled.
func skipped(path string, err error) converter.Result {
	return converter.Result{
		FilePath:  path,
		Success:   false,
		ErrorType: "cancelled",
		Error:     fmt.Errorf("not exported: %w", err),
	}
}

// previewStore copies today's counters of every dialect into memory so a dry
// run shows the numbers a real run would use without consuming them.
func previewStore(ctx context.Context, db *sql.DB, registry *dialect.Registry, day time.Time) (*sequence.MemoryStore, error) {
	durable := sequence.NewSQLiteStore(db)
	preview := sequence.NewMemoryStore()

	for _, name := range registry.Names() {
		d, err := registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		keys := []string{
			sequence.ItemSequenceKey(d.CounterPrefix),
			sequence.CashLetterKey(d.CounterPrefix),
			sequence.FileModifierKey(d.CounterPrefix, day),
		}
		for _, key := range keys {
			v, err := durable.Get(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("failed to read counter %s: %w", key, err)
			}
			if err := preview.Set(ctx, key, v); err != nil {
				return nil, err
			}
		}
	}
	return preview, nil
}
