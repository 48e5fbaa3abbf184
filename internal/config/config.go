// =============================================================================
// X9 Cash Letter Encoder - Configuration Module
// =============================================================================
//
// This module loads the main application configuration and the receiving
// bank profiles.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): directories, database, logging, naming
//   2. Bank Profiles (configs/*.yaml): one file per receiving bank
//
// ENVIRONMENT:
//   Every main config key can be overridden with an X9_ prefixed variable,
//   e.g. X9_OUTPUT_DIR or X9_MAX_CONCURRENCY. A .env file next to the
//   binary is loaded first by the CLI.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides of main config keys.
const EnvPrefix = "X9"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for batch manifests.
	// Default: "./input"
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`

	// OutputDir receives the X9 files, export receipts and error logs.
	// Default: "./output"
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// InputArchiveDir receives manifests after a successful export.
	// Default: "./input_archive"
	InputArchiveDir string `mapstructure:"input_archive_dir" yaml:"input_archive_dir"`

	// OutputArchiveDir receives a copy of every exported file.
	// Default: "./output_archive"
	OutputArchiveDir string `mapstructure:"output_archive_dir" yaml:"output_archive_dir"`

	// TemplatesDir holds deposit slip templates referenced as "@name".
	// Default: "./templates"
	TemplatesDir string `mapstructure:"templates_dir" yaml:"templates_dir"`

	// ConfigsDir holds one YAML profile per receiving bank.
	// Default: "./configs"
	ConfigsDir string `mapstructure:"configs_dir" yaml:"configs_dir"`

	// =========================================================================
	// STORAGE SETTINGS
	// =========================================================================

	// DatabasePath is the SQLite file holding sequence counters and export
	// history.
	// Default: "./data/x9export.db"
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is the path to the application log file. Empty logs to stderr.
	// Default: "./logs/x9export.log"
	LogFile string `mapstructure:"log_file" yaml:"log_file"`

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat names exported files.
	// Placeholders:
	//   {uuid}      - the export run ID
	//   {timestamp} - export time (YYYYMMDD_HHMMSS)
	//   {date}      - export date (YYYYMMDD)
	//   {profile}   - bank profile code
	//   {dialect}   - dialect name
	//   {modifier}  - file ID modifier
	// Default: "{profile}_{date}_{modifier}.x937"
	OutputNameFormat string `mapstructure:"output_name_format" yaml:"output_name_format"`

	// WriteReceipt writes an XML export receipt next to every file.
	// Default: true
	WriteReceipt bool `mapstructure:"write_receipt" yaml:"write_receipt"`

	// ArchiveByDate files archived manifests and exports under YYYY/MM/DD.
	// Default: false
	ArchiveByDate bool `mapstructure:"archive_by_date" yaml:"archive_by_date"`

	// ArchiveRetentionDays removes archived files older than this many days
	// after each run. Zero keeps them forever.
	// Default: 0
	ArchiveRetentionDays int `mapstructure:"archive_retention_days" yaml:"archive_retention_days"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds how many manifests are exported at once.
	// Default: 4
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`

	// ContinueOnError keeps processing other manifests after a failure.
	// Default: true
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`
}

// defaults lists every main config key with its default value. Keys listed
// here are the ones environment variables can override.
var defaults = map[string]any{
	"input_dir":              "./input",
	"output_dir":             "./output",
	"input_archive_dir":      "./input_archive",
	"output_archive_dir":     "./output_archive",
	"templates_dir":          "./templates",
	"configs_dir":            "./configs",
	"database_path":          "./data/x9export.db",
	"log_file":               "./logs/x9export.log",
	"log_level":              "info",
	"output_name_format":     "{profile}_{date}_{modifier}.x937",
	"write_receipt":          true,
	"archive_by_date":        false,
	"archive_retention_days": 0,
	"max_concurrency":        4,
	"continue_on_error":      true,
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration.
//
// PARAMETERS:
//   - configPath: the YAML file to read. A missing file is not an error;
//     defaults and environment overrides still apply.
//
// RETURNS:
//   - the validated configuration with every directory created
//   - an error if the file cannot be parsed or a directory cannot be made
func LoadMainConfig(configPath string) (*MainConfig, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config MainConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults repairs values that were set but unusable.
func applyMainConfigDefaults(config *MainConfig) {
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = 1
	}
	if config.ArchiveRetentionDays < 0 {
		config.ArchiveRetentionDays = 0
	}
	if strings.TrimSpace(config.OutputNameFormat) == "" {
		config.OutputNameFormat = defaults["output_name_format"].(string)
	}
	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))
}

// validateMainConfig creates every working directory.
func validateMainConfig(config *MainConfig) error {
	switch config.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", config.LogLevel)
	}

	dirs := []string{
		config.InputDir,
		config.OutputDir,
		config.InputArchiveDir,
		config.OutputArchiveDir,
		config.TemplatesDir,
		config.ConfigsDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// BANK PROFILE LOADING
// =============================================================================

// LoadProfiles loads every bank profile in profilesDir.
//
// RETURNS:
//   - the profiles keyed by code (the file name when no code is set)
//   - an error naming the first file that fails to load
func LoadProfiles(profilesDir string) (map[string]*Profile, error) {
	profiles := make(map[string]*Profile)

	files, err := filepath.Glob(filepath.Join(profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	for _, file := range files {
		profile, err := LoadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		key := profile.Code
		if key == "" {
			key = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			profile.Code = key
			applyProfileDefaults(profile)
		}
		if other, ok := profiles[key]; ok {
			return nil, fmt.Errorf("profile code %q is used by both %s and %s", key, other.Source, file)
		}

		profiles[key] = profile
	}

	return profiles, nil
}

// LoadProfile loads a single bank profile file.
func LoadProfile(filePath string) (*Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}
	profile.Source = filePath

	applyProfileDefaults(&profile)

	if err := validateProfile(&profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

// FindProfile returns the profile whose manifest patterns match the base
// name of filePath. Profiles are tried in code order so the choice is
// stable when patterns overlap.
func FindProfile(filePath string, profiles map[string]*Profile) *Profile {
	codes := make([]string, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if profiles[code].Matches(filePath) {
			return profiles[code]
		}
	}
	return nil
}
