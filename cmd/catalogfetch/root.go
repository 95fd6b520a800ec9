package main

import (
	"fmt"
	"os"
	"runtime"

	"catalogfetch/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFormat  string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "catalogfetch",
	Short: "Bulk product detail fetcher with batching, retries and resume",
	Long: `catalogfetch downloads product detail records from a catalog API for a
list of product identifiers.

Features:
  - Bounded concurrent requests with a configurable limit
  - Retry with exponential backoff, honoring Retry-After on 429
  - Batched JSON output files with a running errors file
  - Durable checkpoint so interrupted runs resume where they stopped
  - Optional Prometheus metrics, terminal dashboard and desktop notifications`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.DisableColor()
		}
		if quiet {
			logLevel = "error"
		}
		if verbose {
			logLevel = "debug"
		}

		// No banner for machine-readable or trivial commands
		if quiet || !ui.IsInteractive() {
			return
		}
		switch cmd.Name() {
		case "version", "help", "show":
			return
		}
		ui.PrintBanner()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .catalogfetch.yaml or $HOME/.config/catalogfetch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (auto, json, pretty)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.SetVersionTemplate(versionString())

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// versionString renders the build and runtime details
func versionString() string {
	return fmt.Sprintf("catalogfetch %s\nGo Version: %s\nOS/Arch: %s/%s\n",
		rootCmd.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// globalFlags returns the config overrides shared by every command
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFormat != "" {
		flags["log-format"] = logFormat
	}
	return flags
}
