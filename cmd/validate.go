// =============================================================================
// X9 Cash Letter Encoder - Validate Command
// =============================================================================
//
// The 'validate' command checks bank profiles and manifests without assigning
// sequence numbers or writing files. Use it before a cutoff to catch missing
// images, bad amounts and profile mistakes.
//
// COMMAND USAGE:
//   x9export validate [--file manifest.csv] [--error-log errors.txt]
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/x9-cash-letter/internal/config"
	"github.com/ginjaninja78/x9-cash-letter/internal/converter"
	"github.com/ginjaninja78/x9-cash-letter/internal/dialect"
	"github.com/ginjaninja78/x9-cash-letter/internal/logger"
	"github.com/ginjaninja78/x9-cash-letter/internal/validation"
	"github.com/ginjaninja78/x9-cash-letter/pkg/utils"
)

// validateFile is a single manifest to validate.
var validateFile string

// validateErrorLog is where validation errors are written, if set.
var validateErrorLog string

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate bank profiles and manifests without exporting",
	Long: `Validate resolves every bank profile against its dialect, then loads and
validates each manifest in the input directory (or the one given by --file).
Nothing is written and no sequence numbers are consumed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runValidate(ctx)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFile, "file", "", "Path to a single manifest to validate")
	validateCmd.Flags().StringVar(&validateErrorLog, "error-log", "", "Write validation errors to this file")
}

// runValidate checks profiles first, then manifests.
func runValidate(ctx context.Context) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	profiles, err := a.loadProfiles()
	if err != nil {
		return err
	}

	// =========================================================================
	// PROFILES
	// =========================================================================

	registry := dialect.NewRegistry()
	codes := make([]string, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	fmt.Println("=== Bank Profiles ===")
	badProfiles := 0
	for _, code := range codes {
		p := profiles[code]
		if err := checkProfile(registry, p, a); err != nil {
			badProfiles++
			fmt.Printf("  ✗ %s (%s): %v\n", code, p.Dialect, err)
			continue
		}
		fmt.Printf("  ✓ %s (%s)\n", code, p.Dialect)
	}

	// =========================================================================
	// MANIFESTS
	// =========================================================================

	var inputFiles []string
	if validateFile != "" {
		inputFiles = []string{validateFile}
	} else {
		files := utils.NewFileManager(a.main.InputDir, a.main.OutputDir, a.main.InputArchiveDir, a.main.OutputArchiveDir)
		inputFiles, err = files.DiscoverInputFiles("")
		if err != nil {
			return fmt.Errorf("failed to discover manifests: %w", err)
		}
	}

	fmt.Println("\n=== Manifests ===")
	if len(inputFiles) == 0 {
		fmt.Println("No manifests found.")
	}

	var all []*validation.ValidationError
	badManifests := 0
	for _, path := range inputFiles {
		name := filepath.Base(path)
		profile := config.FindProfile(path, profiles)
		if profile == nil {
			badManifests++
			fmt.Printf("  ✗ %s: no matching bank profile found\n", name)
			continue
		}

		plan, err := converter.New(path, profile, converter.Options{
			Main:     a.main,
			Registry: registry,
			Sealer:   a.sealer,
			Logger:   logger.L(),
		}).Plan(ctx)
		if err != nil {
			badManifests++
			fmt.Printf("  ✗ %s: %v\n", name, err)
			continue
		}

		v := plan.Validation
		if !v.IsValid {
			badManifests++
			fmt.Printf("  ✗ %s [%s]: %d error(s), %d warning(s)\n", name, profile.Code, v.ErrorCount, v.WarningCount)
		} else {
			fmt.Printf("  ✓ %s [%s]: %d transaction(s), %d warning(s)\n",
				name, profile.Code, plan.Manifest.Transactions(), v.WarningCount)
		}
		if len(v.Errors) > 0 {
			fmt.Println(indent(validation.FormatErrors(v.Errors)))
			all = append(all, v.Errors...)
		}
	}

	if validateErrorLog != "" && len(all) > 0 {
		if err := validation.WriteErrorLog(all, validateErrorLog); err != nil {
			return err
		}
		fmt.Printf("\nValidation errors written to %s\n", validateErrorLog)
	}

	if badProfiles > 0 || badManifests > 0 {
		return fmt.Errorf("%d profile(s) and %d manifest(s) failed validation", badProfiles, badManifests)
	}
	fmt.Println("\nEverything is valid.")
	return nil
}

// checkProfile resolves p against its dialect.
func checkProfile(registry *dialect.Registry, p *config.Profile, a *app) error {
	if _, err := registry.Lookup(p.Dialect); err != nil {
		return err
	}
	if len(p.ManifestPatterns) == 0 {
		return errors.New("no manifest_patterns, no manifest will ever match")
	}
	_, err := converter.ResolveConfiguration(p, a.sealer)
	return err
}

// indent prefixes every line of s with four spaces.
func indent(s string) string {
	out := make([]byte, 0, len(s)+64)
	out = append(out, "    "...)
	for i := 0; i < len(s); i++ {
		out = append(out, s[i])
		if s[i] == '\n' && i+1 < len(s) {
			out = append(out, "    "...)
		}
	}
	return string(out)
}
