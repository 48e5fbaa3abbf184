// =============================================================================
// X9 Cash Letter Encoder - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (x9export)
//   ├── exportCmd   (x9export export)
//   ├── validateCmd (x9export validate)
//   ├── sequenceCmd (x9export sequence show|set)
//   ├── sealCmd     (x9export seal key|value)
//   └── versionCmd  (x9export version)
//
// CONFIGURATION:
//   Commands that need it call setup(), which:
//   1. Loads .env (the sealing key usually lives there)
//   2. Loads the main configuration with X9_ environment overrides
//   3. Installs the JSON logger
//   4. Builds the MICR sealer from X9_SEAL_KEY
//
// =============================================================================

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/x9-cash-letter/internal/config"
	"github.com/ginjaninja78/x9-cash-letter/internal/database"
	"github.com/ginjaninja78/x9-cash-letter/internal/logger"
	"github.com/ginjaninja78/x9-cash-letter/internal/secure"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile holds the path to the dotenv file.
var envFile string

// verbose enables debug logging with source locations.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "x9export",
	Short: "X9 Cash Letter Encoder - export deposited checks as X9.37 / X9.100 files",
	Long: `x9export turns check deposit manifests into ANSI X9.37 (DSTU) and
X9.100-187 image cash letter files for a receiving bank.

Each manifest lists the scanned checks of one or more deposit batches: amount,
MICR line and the front and back images. A bank profile in the configs
directory decides which dialect the file is written in.

Key Features:
  - Built-in dialects: X937, X9100, USBank, CassCommercialBank, CommerceBank
  - Durable item sequence numbers, cash letter IDs and file ID modifiers
  - Deposit slip credits (type 61) with generated slip images
  - Sealed MICR lines and bank attributes
  - XML export receipts, export history and archival

Example Usage:
  x9export export                       # Export every manifest in the input directory
  x9export export --file in/usb_0304.csv --dry-run
  x9export validate                     # Check manifests without exporting
  x9export sequence show --dialect USBank`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		".env",
		"Path to a dotenv file loaded before the configuration",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// app holds what every command that touches the configuration needs.
type app struct {
	main    *config.MainConfig
	sealer  *secure.Sealer
	cleanup func() error
}

// setup loads the environment, the main configuration, the logger and the
// sealer. Call app.close when done.
func setup() (*app, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}

	cleanup, err := logger.Setup(logger.Config{
		File:    mainConfig.LogFile,
		Level:   mainConfig.LogLevel,
		Verbose: verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	sealer, err := secure.FromEnv()
	if err != nil {
		cleanup()
		return nil, err
	}

	return &app{main: mainConfig, sealer: sealer, cleanup: cleanup}, nil
}

func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

// openDatabase opens the sequence and history database of the configuration.
func (a *app) openDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := database.Open(ctx, a.main.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// loadProfiles loads the bank profiles and fails when there are none.
func (a *app) loadProfiles() (map[string]*config.Profile, error) {
	profiles, err := config.LoadProfiles(a.main.ConfigsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no bank profiles found in %s", a.main.ConfigsDir)
	}
	return profiles, nil
}
