// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tiktokzone/internal/config"
	"tiktokzone/internal/logging"
	"tiktokzone/internal/provider"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagDebug    bool
	flagLogLevel string
	flagProvider string
	flagJSON     bool
)

// cfg holds the loaded configuration (merged: defaults < config file < env < flags).
var cfg *config.Config

// logger is built from cfg once flags are parsed.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "tiktokzone",
	Short: "Look up TikTok posts and download them without the watermark",
	Long: `tiktokzone resolves TikTok links into post metadata and brokers downloads
through a chain of third-party services. Run "tiktokzone serve" for the HTTP API
or use fetch and download from the terminal.`,
	SilenceUsage:       true,
	PersistentPreRunE:  loadConfig,
	PersistentPostRunE: syncLogger,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug | info | warn | error")
	rootCmd.PersistentFlags().StringVarP(&flagProvider, "provider", "p", "", "Download provider: tikwm | savett | snaptik (or alt1, alt2)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Print results as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads .env, then merges configuration: defaults < config file <
// environment < CLI flags, and builds the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagProvider != "" {
		name := provider.Canonical(flagProvider)
		if name == "" {
			return fmt.Errorf("unknown provider %q", flagProvider)
		}
		cfg.DefaultProvider = name
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err = logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded",
		zap.String("listen", cfg.Listen),
		zap.String("default_provider", cfg.DefaultProvider))
	return nil
}

func syncLogger(cmd *cobra.Command, args []string) error {
	// stderr cannot be synced on some platforms
	_ = logger.Sync()
	return nil
}
