package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information, set at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boorufetch",
	Short: "A booru tag-search media downloader with tag sidecars",
	Long: `boorufetch downloads media from a Danbooru-style tag-search API.

Posts are screened against a configurable policy (blacklist, dimensions,
id/date/score ranges, ratings), downloaded concurrently with retry, and
deduplicated against the output directory. Every artifact gets a
plain-text sidecar holding its tag list, normalized after the run
(search tags first, optional trigger words prepended).`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
