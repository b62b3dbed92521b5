package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/uiv1/internal/config"
	"github.com/jmylchreest/uiv1/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose     bool
		reportsFile string
		configPath  string
	}
	logger *slog.Logger

	reportLog    *store.ReportLog
	suppressFile *store.SuppressFile
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "uiv1",
	Short: "Inspect and drive the uiv1 user interface daemon",
	Long: `uiv1 inspects the report log written by uiv1d (widget leaks and
cosmetic failures) and drives a running daemon over its debug bus.

Running uiv1 without a subcommand launches the interactive inspector.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(configPath())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if !needsReportLog(cmd) {
			return nil
		}
		if err := config.EnsureDataDir(); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		persistence, err := store.NewJSONLPersistence(reportsPath())
		if err != nil {
			return fmt.Errorf("failed to initialize persistence: %w", err)
		}
		reportLog = store.NewReportLog(persistence, "uiv1", logger)

		suppressFile = store.NewSuppressFile(config.SuppressionsPath())
		keys, err := suppressFile.Load()
		if err != nil {
			logger.Warn("failed to load suppressions", "error", err)
		} else if len(keys) > 0 {
			reportLog.LoadSuppressions(keys)
		}

		if err := reportLog.Hydrate(); err != nil {
			logger.Warn("failed to hydrate report log from disk", "error", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if reportLog == nil {
			return nil
		}
		if suppressFile != nil {
			if keys := reportLog.Suppressions(); len(keys) > 0 {
				if err := suppressFile.Save(keys); err != nil {
					logger.Warn("failed to save suppressions", "error", err)
				}
			}
		}
		return reportLog.Close()
	},
	// Default to the inspector when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.reportsFile, "reports-file", "",
		"Path to report log (default: ~/.local/share/uiv1/reports.jsonl)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/uiv1/uiv1.toml)")
}

// reportCommands are the command paths that read or write the report log.
// Bus and asset commands skip opening it.
var reportCommands = map[string]bool{
	"uiv1":                true,
	"uiv1 inspect":        true,
	"uiv1 status":         true,
	"uiv1 leaks":          true,
	"uiv1 leaks ack":      true,
	"uiv1 leaks suppress": true,
	"uiv1 leaks prune":    true,
	"uiv1 leaks import":   true,
	"uiv1 leaks clear":    true,
}

func needsReportLog(cmd *cobra.Command) bool {
	return reportCommands[cmd.CommandPath()]
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

func configPath() string {
	if globalOpts.configPath != "" {
		return globalOpts.configPath
	}
	return config.ConfigPath()
}

func reportsPath() string {
	if globalOpts.reportsFile != "" {
		return globalOpts.reportsFile
	}
	return config.ReportsPath()
}
