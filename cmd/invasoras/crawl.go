package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"invasoras/pkg/auth"
	"invasoras/pkg/config"
	"invasoras/pkg/logger"
	"invasoras/pkg/scraper"
)

// crawlCmd crawls an explicit list of occurrence pages
var crawlCmd = &cobra.Command{
	Use:   "crawl [occurrence-url...]",
	Short: "Crawl occurrence pages and download their images",
	Long: `Crawl GBIF occurrence pages and download every image linked from their
media section.

With no arguments the configured occurrence list is used.`,
	Example: `  # Crawl the configured occurrences
  invasoras crawl

  # Crawl two specific records into ./photos
  invasoras crawl https://www.gbif.org/occurrence/1270744105 https://www.gbif.org/occurrence/1270744166 -o ./photos`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	flags := commandLineFlags(cmd)
	if len(args) > 0 {
		flags["occurrences"] = args
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	if cfg.Relay.APIKey == "" {
		cfg.Relay.APIKey = storedAPIKey(cfg.Relay.KeyName, log)
	}
	if cfg.Relay.APIKey == "" {
		return errors.New("no relay API key configured: run 'invasoras key set', pass --api-key or set INVASORAS_API_KEY")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := scraper.NewFromConfig(cfg, log)
	if err != nil {
		return err
	}

	summary, err := s.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Warn("Run interrupted, exiting gracefully")
		printer.Warning("Run interrupted")
		printer.Summary(summary, summary.OutputDir)
		return nil
	}
	if err != nil {
		return err
	}

	printer.Summary(summary, summary.OutputDir)
	return nil
}

// storedAPIKey looks the relay key up in the key store. Store failures
// only mean there is no stored key.
func storedAPIKey(name string, log logger.Logger) string {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Key store unavailable")
		return ""
	}

	key, err := manager.Retrieve(name)
	if err != nil {
		log.DebugWithFields("No stored API key", map[string]interface{}{
			"name": name,
		})
		return ""
	}
	return key
}
