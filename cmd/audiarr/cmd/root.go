// Package cmd implements the CLI commands for audiarr.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/observability"
	"github.com/jmylchreest/audiarr/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// cfg is loaded once in PersistentPreRunE and shared by all commands.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "audiarr",
	Short:   "Default audio track management for Sonarr/Radarr libraries",
	Version: version.Short(),
	Long: `audiarr keeps the default audio track of a media library consistent with
each title's original language. It receives import webhooks from Sonarr and
Radarr, resolves the original language through TMDB, and rewrites the
default-track flag with mkvpropedit (MKV) or an ffmpeg stream-copy remux (MP4).

Files can also be processed directly with the process and scan commands, or
in bulk through the HTTP batch API.`,
	// PersistentPreRunE is set in init() to avoid an initialization cycle.
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Set PersistentPreRunE here to avoid an initialization cycle
	// (initLogging references rootCmd.PersistentFlags).
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return initLogging()
	}

	// Global flags
	// Note: the log flags are NOT bound to viper. We check if they were
	// explicitly set using Changed() and only then override the config/env
	// values. This preserves the correct priority:
	// CLI flag > env var > config > default.
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default searches ., ./configs, /etc/audiarr, $HOME/.audiarr)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initLogging configures the slog logger from configuration, with CLI flags
// taking priority. Uses the observability package so secret redaction is
// always applied.
func initLogging() error {
	logCfg := cfg.Logging

	if rootCmd.PersistentFlags().Changed("log-level") {
		logCfg.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		logCfg.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	logCfg.Level = strings.ToLower(logCfg.Level)
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}
	logCfg.Format = strings.ToLower(logCfg.Format)

	logger := observability.NewLogger(logCfg)
	observability.SetDefault(logger)
	return nil
}
