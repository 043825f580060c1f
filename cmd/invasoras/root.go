package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"invasoras/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile     string
	logLevel       string
	outputDir      string
	apiKey         string
	maxConnections int
	verifyContent  bool

	printer = ui.NewPrinter(os.Stdout)
)

// rootCmd runs the crawl when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "invasoras",
	Short: "Download the media of GBIF occurrence records",
	Long: `invasoras fetches GBIF occurrence pages through the ScraperAPI relay,
follows every image in their media section and saves the images as
<occurrence id>_<n>.<ext> in the output directory.

Run without arguments to crawl the configured occurrence list.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(cmd, nil)
	},
}

// Execute runs the root command and exits non-zero on configuration errors
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printer.Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.invasoras.yaml or ~/.config/invasoras/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory for images (default ./images_invasoras)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "ScraperAPI key (default: stored key or INVASORAS_API_KEY)")
	rootCmd.PersistentFlags().IntVar(&maxConnections, "max-connections", 0, "maximum simultaneous connections (default 100)")
	rootCmd.PersistentFlags().BoolVar(&verifyContent, "verify-content", false, "sniff image bytes and reject responses that are not images")

	rootCmd.SetVersionTemplate(`invasoras {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// commandLineFlags collects the flags the user actually set, in the form
// config.MergeCommandLineFlags expects
func commandLineFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed

	if set("api-key") {
		flags["api-key"] = apiKey
	}
	if set("output") {
		flags["output"] = outputDir
	}
	if set("max-connections") {
		flags["max-connections"] = maxConnections
	}
	if set("verify-content") {
		flags["verify-content"] = verifyContent
	}
	if set("log-level") {
		flags["log-level"] = logLevel
	}

	return flags
}
