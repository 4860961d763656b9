package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geox/judge/internal/logging"
)

const Version = "0.1.0"

var (
	logLevelFlags []string // Supports multiple --log-level flags
)

var rootCmd = &cobra.Command{
	Use:   "judge",
	Short: "Judge - evidence-bounded problem declarations for field sensors",
	Long: `Judge evaluates one window of sensor evidence against a versioned rule
document and declares at most one problem state, or stays silent.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLog(logLevelFlags)
	},
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	// Supports per-package log levels: --log-level debug --log-level judge.pipeline=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		[]string{"warn"},
		"Log level for packages. Use 'default=level' for default, or 'package.name=level' for per-package.\n"+
			"Examples: --log-level debug (all), --log-level judge.pipeline=debug --log-level governance=warn")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLog initializes the logging system with parsed log level flags
func setupLog(flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(flags)
	if err != nil {
		return err
	}
	return logging.Initialize(defaultLevel, packageLevels)
}

// parseLogLevelFlags merges LOG_LEVEL_* environment variables with CLI
// flags; flags win.
//
// CLI format: ["debug"], ["default=info", "judge.pipeline=debug"]
// Env vars: LOG_LEVEL_JUDGE_PIPELINE=debug (package name uppercased, dots to underscores)
func parseLogLevelFlags(flags []string) (string, map[string]string, error) {
	result := make(map[string]string)

	for _, envPair := range os.Environ() {
		key, level, ok := strings.Cut(envPair, "=")
		if !ok || !strings.HasPrefix(key, "LOG_LEVEL_") {
			continue
		}
		result[convertEnvKeyToPackageName(key)] = level
	}

	for _, flag := range flags {
		pkg, level, ok := strings.Cut(flag, "=")
		if !ok {
			result["default"] = flag
			continue
		}
		result[pkg] = level
	}

	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}
	if err := validateLogLevel(defaultLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range result {
		if err := validateLogLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
	}
	return defaultLevel, result, nil
}

// convertEnvKeyToPackageName converts LOG_LEVEL_JUDGE_PIPELINE -> judge.pipeline
func convertEnvKeyToPackageName(envKey string) string {
	name := strings.TrimPrefix(envKey, "LOG_LEVEL_")
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}

// validateLogLevel checks if a level string is valid
func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error", "fatal":
		return nil
	}
	return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error, fatal)", level)
}
