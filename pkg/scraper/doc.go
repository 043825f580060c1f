// Package scraper drives the occurrence-image crawl.
//
// A run has two phases. Phase 1 fetches every occurrence page through the
// relay and collects the image-detail links in its media section. Phase 2
// starts once phase 1 has finished; it resolves each image-detail page to a
// direct image URL and downloads the image as "<occurrence id>_<n>.<ext>".
// Within a phase all tasks run concurrently, bounded by the configured
// connection cap, and a failed task only drops its own unit of work.
//
// Usage:
//
//	cfg, err := config.Load("", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := scraper.NewFromConfig(cfg, logger.GetLogger())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := s.Run(ctx)
package scraper
