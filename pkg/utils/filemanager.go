// =============================================================================
// X9 Cash Letter Encoder - File Manager Utility
// =============================================================================
//
// This module provides the file handling around an export run:
//   - Manifest discovery in the input directory
//   - Archival of manifests and exported files
//   - Output file naming
//   - Error logs and the run summary
//
// ARCHIVAL STRATEGY:
//   - Manifests are moved to input_archive after a successful export
//   - Exported files and receipts are copied to output_archive
//   - Manifests that failed stay where they are so they can be fixed
//   - Error logs are written to the output directory
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ManifestExtensions are the file types discovered in the input directory.
var ManifestExtensions = []string{".csv", ".txt", ".xlsx", ".xlsm"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for an export run.
type FileManager struct {
	// InputDir is the directory where manifests are dropped.
	InputDir string

	// OutputDir is the directory where exported files are written.
	OutputDir string

	// InputArchiveDir is the directory for archived manifests.
	InputArchiveDir string

	// OutputArchiveDir is the directory for archived exports.
	OutputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in archives.
	// Example: input_archive/2026/03/04/commerce_0304.csv
	UseTimestampSubdirs bool

	// ArchiveOnSuccess determines whether to archive files after a
	// successful export.
	ArchiveOnSuccess bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:            inputDir,
		OutputDir:           outputDir,
		InputArchiveDir:     inputArchiveDir,
		OutputArchiveDir:    outputArchiveDir,
		UseTimestampSubdirs: false,
		ArchiveOnSuccess:    true,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{
		fm.InputDir,
		fm.OutputDir,
		fm.InputArchiveDir,
		fm.OutputArchiveDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the manifests in the input directory, sorted by
// name. Hidden files, lock files left by spreadsheet editors and
// subdirectories are skipped.
//
// PARAMETERS:
//   - pattern: A glob pattern to match files (e.g., "commerce_*.csv").
//     If empty, every file with a manifest extension is returned.
func (fm *FileManager) DiscoverInputFiles(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	files, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, file := range files {
		name := filepath.Base(file)
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !IsManifest(name) {
			continue
		}
		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			continue
		}
		result = append(result, file)
	}

	sort.Strings(result)
	return result, nil
}

// IsManifest reports whether name has one of the manifest extensions.
func IsManifest(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ManifestExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves a manifest to the archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves fail; copy and remove instead.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// ArchiveOutputFile copies an exported file to the archive directory. The
// export stays in the output directory for pickup.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(fm.OutputArchiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := time.Now()
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(archiveDir, fileName)
}

// =============================================================================
// OUTPUT FILES
// =============================================================================

// ErrOutputExists is returned when an export would overwrite a file.
var ErrOutputExists = errors.New("output file already exists")

// GenerateOutputFileName generates an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID unless params provides one
//     {timestamp} - at as YYYYMMDD_HHMMSS
//     {date}      - at as YYYYMMDD
//     {time}      - at as HHMMSS
//     {<key>}     - any key of params, e.g. {profile}, {dialect}, {modifier}
//   - at: The export time.
//   - params: A map of placeholder values.
//   - ext: The extension to ensure, e.g. ".x937".
//
// EXAMPLE:
//
//	format: "{profile}_{date}_{modifier}"
//	params: {"profile": "commerce", "modifier": "A"}
//	output: "commerce_20260304_A.x937"
func GenerateOutputFileName(format string, at time.Time, params map[string]string, ext string) string {
	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": at.Format("20060102_150405"),
		"{date}":      at.Format("20060102"),
		"{time}":      at.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}
	return result
}

// WriteOutputFile writes data to path without ever replacing an existing
// file. The data is written to a temporary file first so a reader never
// sees a partial export.
func WriteOutputFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrOutputExists, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check output file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	// Link fails if path appeared since the check above.
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrOutputExists, path)
		}
		return fmt.Errorf("failed to publish output file: %w", err)
	}
	return nil
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp     time.Time
	FileName      string
	ErrorType     string
	ErrorMessage  string
	RowNumber     int
	FieldName     string
	FieldValue    string
	TransactionID string
	BatchID       string
}

// WriteErrorLog writes error entries for one manifest to a log file named
// after it.
//
// PARAMETERS:
//   - entries: The error entries to write.
//   - outputDir: The directory to write the log file.
//   - manifest: The manifest that failed.
//
// RETURNS:
//   - The path to the error log file, or "" when there is nothing to write.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir, manifest string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	now := time.Now()
	base := strings.TrimSuffix(filepath.Base(manifest), filepath.Ext(manifest))
	logPath := filepath.Join(outputDir, fmt.Sprintf("%s_errors_%s.txt", base, now.Format("20060102_150405")))

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create error log directory: %w", err)
	}
	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "X9 Cash Letter Export - Error Log\n"+
		"Manifest: %s\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		filepath.Base(manifest),
		now.Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Timestamp:      %s\n"+
			"  File:           %s\n"+
			"  Error Type:     %s\n"+
			"  Message:        %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.FileName,
			entry.ErrorType,
			entry.ErrorMessage)

		if entry.RowNumber > 0 {
			fmt.Fprintf(writer, "  Row Number:     %d\n", entry.RowNumber)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(writer, "  Field:          %s\n", entry.FieldName)
		}
		if entry.FieldValue != "" {
			fmt.Fprintf(writer, "  Value:          %s\n", entry.FieldValue)
		}
		if entry.BatchID != "" {
			fmt.Fprintf(writer, "  Batch ID:       %s\n", entry.BatchID)
		}
		if entry.TransactionID != "" {
			fmt.Fprintf(writer, "  Transaction ID: %s\n", entry.TransactionID)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about an export run.
type ProcessingSummary struct {
	RunID             string
	StartTime         time.Time
	EndTime           time.Time
	DryRun            bool
	TotalFiles        int
	SuccessfulFiles   int
	FailedFiles       int
	TotalRows         int
	TotalTransactions int
	TotalAmount       decimal.Decimal
	ValidationErrors  int
	ProcessedFiles    []ProcessedFileInfo
	FailedFilesList   []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully exported
// manifest.
type ProcessedFileInfo struct {
	InputFile    string
	OutputFile   string
	ReceiptFile  string
	Profile      string
	Dialect      string
	CashLetterID string
	Rows         int
	Transactions int
	Bundles      int
	TotalAmount  decimal.Decimal
	ProcessTime  time.Duration
}

// FailedFileInfo contains information about a failed manifest.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
	ErrorLog     string
}

// WriteSummaryLog writes a run summary to a log file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir,
		fmt.Sprintf("export_summary_%s.txt", summary.StartTime.Format("20060102_150405")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	mode := "export"
	if summary.DryRun {
		mode = "dry run (nothing written)"
	}

	fmt.Fprintf(writer, "X9 Cash Letter Export - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Mode:           %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Successful:         %d\n"+
		"  Failed:             %d\n"+
		"  Total Rows:         %d\n"+
		"  Total Transactions: %d\n"+
		"  Total Amount:       %s\n"+
		"  Validation Errors:  %d\n\n",
		summary.RunID,
		mode,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalRows,
		summary.TotalTransactions,
		summary.TotalAmount.StringFixed(2),
		summary.ValidationErrors)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Output:       %s\n", pf.OutputFile)
			if pf.ReceiptFile != "" {
				fmt.Fprintf(writer, "  Receipt:      %s\n", pf.ReceiptFile)
			}
			fmt.Fprintf(writer, "  Profile:      %s (%s)\n", pf.Profile, pf.Dialect)
			fmt.Fprintf(writer, "  Cash Letter:  %s\n", pf.CashLetterID)
			fmt.Fprintf(writer, "  Rows:         %d\n", pf.Rows)
			fmt.Fprintf(writer, "  Transactions: %d in %d bundle(s)\n", pf.Transactions, pf.Bundles)
			fmt.Fprintf(writer, "  Amount:       %s\n", pf.TotalAmount.StringFixed(2))
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Type:  %s\n", ff.ErrorType)
			fmt.Fprintf(writer, "  Error: %s\n", ff.ErrorMessage)
			if ff.ErrorLog != "" {
				fmt.Fprintf(writer, "  Log:   %s\n", ff.ErrorLog)
			}
			writer.WriteString("\n")
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CleanOldArchives removes archive files older than maxAge and returns how
// many were removed.
func CleanOldArchives(archiveDir string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(archiveDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to clean archives: %w", err)
	}

	return removed, nil
}
