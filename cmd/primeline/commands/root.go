package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/moolen/primeline/internal/config"
	"github.com/moolen/primeline/internal/logging"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	logLevelFlags []string // Supports multiple --log-level flags
	configPath    string
)

var rootCmd = &cobra.Command{
	Use:   "primeline",
	Short: "Primeline - prime-factorization error log analysis",
	Long: `Primeline records error events as products of primes, one prime per
error label, and analyzes the closed session artifacts: spectral content,
recurring patterns, anomalies, and component transition structure.`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all subcommands
	// Supports per-package log levels: --log-level debug --log-level analysis.pipeline=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		[]string{"info"},
		"Log level for packages. Use 'default=level' for default, or 'package.name=level' for per-package.\n"+
			"Examples: --log-level debug (all), --log-level analysis.pipeline=debug --log-level codec=warn")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the primeline config file (default: ./"+config.DefaultFileName+" if present)")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(componentsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(watchCmd)
}

// HandleError prints error and exits
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// setup loads the configuration and initializes logging, then hands
// back a logger for the command. Every run function calls it first.
func setup(name string) (*config.Config, *logging.Logger) {
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		HandleError(err, "Configuration error")
	}
	if err := setupLog(cfg, logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	return cfg, logging.GetLogger(name)
}

// setupLog initializes the logging system with parsed log level flags
// Supports per-package log levels and environment variables
// Priority: CLI flags > Environment variables > Config file > Initialize default
func setupLog(cfg *config.Config, flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(cfg, flags)
	if err != nil {
		return err
	}

	// Initialize logging with default level and package-specific overrides
	if err := logging.Initialize(defaultLevel, packageLevels); err != nil {
		return err
	}
	return nil
}

// parseLogLevelFlags merges config file levels, environment variables,
// and CLI flags. Priority: CLI flags > Environment variables > Config.
//
// CLI format: ["debug"], ["default=info", "analysis.pipeline=debug"], or ["info"]
// Env vars: LOG_LEVEL_ANALYSIS_PIPELINE=debug (package name uppercased, dots to underscores)
//
// Returns: (defaultLevel, packageLevels map, error)
func parseLogLevelFlags(cfg *config.Config, flags []string) (string, map[string]string, error) {
	result := make(map[string]string)

	// Step 1: Config file levels (lowest priority)
	if cfg != nil {
		if cfg.LogLevel != "" {
			result["default"] = cfg.LogLevel
		}
		for pkg, level := range cfg.LogLevels {
			result[pkg] = level
		}
	}

	// Step 2: Environment variables, LOG_LEVEL_* pattern
	for _, envPair := range os.Environ() {
		if strings.HasPrefix(envPair, "LOG_LEVEL_") {
			parts := strings.SplitN(envPair, "=", 2)
			if len(parts) != 2 {
				continue
			}
			// Convert back: LOG_LEVEL_ANALYSIS_PIPELINE=debug -> analysis.pipeline
			packageName := convertEnvKeyToPackageName(parts[0])
			level := parts[1]
			result[packageName] = level
		}
	}

	// Step 3: CLI flags (override everything)
	for _, flag := range flags {
		if !strings.Contains(flag, "=") {
			// Simple format like "debug" or "info" means default level
			result["default"] = flag
		} else {
			// Format like "analysis.pipeline=debug"
			parts := strings.SplitN(flag, "=", 2)
			if len(parts) == 2 {
				pkg, level := parts[0], parts[1]
				result[pkg] = level
			}
		}
	}

	// Step 4: Extract default level (special key "default")
	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}

	// Step 5: Validate default level
	if err := validateLogLevel(defaultLevel); err != nil {
		return "", nil, err
	}

	// Step 6: Validate all package levels
	for pkg, level := range result {
		if err := validateLogLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %v", pkg, err)
		}
	}

	return defaultLevel, result, nil
}

// convertEnvKeyToPackageName converts LOG_LEVEL_ANALYSIS_PIPELINE -> analysis.pipeline
func convertEnvKeyToPackageName(envKey string) string {
	// Remove LOG_LEVEL_ prefix
	name := strings.TrimPrefix(envKey, "LOG_LEVEL_")
	// Convert underscores to dots, lowercase
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}

// validateLogLevel checks if a level string is valid
func validateLogLevel(level string) error {
	if _, err := logging.ParseLevel(level); err != nil {
		return err
	}
	return nil
}
