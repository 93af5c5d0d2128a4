// Command calc evaluates arithmetic expressions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zephyrtronium/calculator/internal/config"
	"github.com/zephyrtronium/calculator/internal/history"
	"github.com/zephyrtronium/calculator/internal/telemetry"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	configPath string
	logLevel   string
	logFormat  string
)

// Loaded before any subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "calc",
		Short: "Evaluate arithmetic expressions",
		Long: `calc compiles and evaluates arithmetic expressions over floating-point
numbers, with named constants like pi and functions like sqrt and atan2.
Results are recorded to a history file, and calc serve evaluates
expressions over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, or error (overrides config)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newHistoryCmd())

	return root
}

// loadConfig reads the configuration, applies flag overrides, and builds the
// logger.
func loadConfig(cmd *cobra.Command) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		c.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		c.Log.Format = logFormat
	}
	if err := c.Validate(); err != nil {
		return err
	}
	level, err := telemetry.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	cfg = c
	logger = telemetry.NewLogger(cmd.ErrOrStderr(), level, c.Log.Format)
	logger.Debug("config loaded", "path", configPath)
	return nil
}

// openHistory opens the configured history store, or returns nil if history
// is disabled.
func openHistory() (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	return history.Open(cfg.History.Path)
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
