package scraper

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"invasoras/internal/downloader"
	"invasoras/internal/transport"
	"invasoras/pkg/config"
	"invasoras/pkg/gbif"
	"invasoras/pkg/logger"
	"invasoras/pkg/models"
	"invasoras/pkg/relay"
	"invasoras/pkg/storage"
)

// Scraper orchestrates the two crawl phases: link discovery on every
// occurrence page, then resolution and download of every image page found
type Scraper struct {
	occurrences    []models.Occurrence
	fetcher        PageFetcher
	parser         OccurrenceParser
	downloader     ImageDownloader
	maxConnections int
	store          *storage.Manager
	logger         logger.Logger
}

// New creates a Scraper over the given occurrence page URLs. Each phase
// runs at most maxConnections tasks at once.
func New(occurrenceURLs []string, fetcher PageFetcher, parser OccurrenceParser, dl ImageDownloader, maxConnections int, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	if maxConnections <= 0 {
		maxConnections = 1
	}

	occurrences := make([]models.Occurrence, 0, len(occurrenceURLs))
	for _, u := range occurrenceURLs {
		occurrences = append(occurrences, models.NewOccurrence(u))
	}

	return &Scraper{
		occurrences:    occurrences,
		fetcher:        fetcher,
		parser:         parser,
		downloader:     dl,
		maxConnections: maxConnections,
		logger:         log,
	}
}

// NewFromConfig wires the production pipeline: one connection-capped HTTP
// client shared by the relay and the image downloads, the GBIF parser and
// the output directory.
func NewFromConfig(cfg *config.Config, log logger.Logger) (*Scraper, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	storageManager, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		log.WithError(err).WithField("output_dir", cfg.Output.Directory).Error("Failed to create storage manager")
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	parser, err := gbif.NewParser(cfg.Site.Origin, cfg.Site.MediaSectionID, cfg.Site.ImageClass, log)
	if err != nil {
		return nil, err
	}

	client := transport.NewLimitedClient(cfg.Download.MaxConnections)
	fetcher := relay.NewClient(client, cfg.Relay.Endpoint, cfg.Relay.APIKey, cfg.Relay.Timeout, log)

	dl := downloader.New(client, fetcher, parser, storageManager, downloader.Options{
		UserAgent:     cfg.Download.UserAgent,
		Timeout:       cfg.Download.Timeout,
		VerifyContent: cfg.Download.VerifyContent,
	}, log)

	s := New(cfg.Occurrences, fetcher, parser, dl, cfg.Download.MaxConnections, log)
	s.store = storageManager
	return s, nil
}

// Run executes both phases and returns a summary of the run. Per-page and
// per-image failures are logged and counted but never returned. The only
// error is the context's, when the run was interrupted; the summary then
// covers the work finished before the interruption.
func (s *Scraper) Run(ctx context.Context) (*models.Summary, error) {
	start := time.Now()

	s.logger.InfoWithFields("Starting crawl", map[string]interface{}{
		"occurrences":     len(s.occurrences),
		"max_connections": s.maxConnections,
	})

	discovered := s.discover(ctx)
	if err := ctx.Err(); err != nil {
		return s.summarize(discovered, nil, start), err
	}

	jobs := buildJobs(discovered)
	s.logger.InfoWithFields("Link discovery complete", map[string]interface{}{
		"image_pages": len(jobs),
	})

	downloads := s.downloadAll(ctx, jobs)
	summary := s.summarize(discovered, downloads, start)

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	fields := map[string]interface{}{
		"occurrences":        summary.Occurrences,
		"failed_occurrences": summary.FailedOccurrences,
		"image_pages":        summary.ImagePages,
		"downloaded":         summary.Downloaded,
		"failed":             summary.Failed,
		"duration":           summary.Duration,
	}
	if s.store != nil {
		fields["output_dir"] = s.store.GetOutputDir()
		fields["files_written"] = s.store.GetSavedCount()
	}
	s.logger.InfoWithFields("Crawl finished", fields)

	return summary, nil
}

// discover runs phase 1. Every occurrence gets its own slot in the result
// slice; tasks never return errors so none can cancel its siblings.
func (s *Scraper) discover(ctx context.Context) []models.OccurrenceResult {
	results := make([]models.OccurrenceResult, len(s.occurrences))

	var g errgroup.Group
	g.SetLimit(s.maxConnections)

	for i, occ := range s.occurrences {
		i, occ := i, occ
		results[i].Occurrence = occ
		if ctx.Err() != nil {
			results[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			results[i] = s.discoverOccurrence(ctx, occ)
			return nil
		})
	}

	g.Wait()
	return results
}

func (s *Scraper) discoverOccurrence(ctx context.Context, occ models.Occurrence) models.OccurrenceResult {
	result := models.OccurrenceResult{Occurrence: occ}

	html, err := s.fetcher.Fetch(ctx, occ.URL)
	if err != nil {
		// the fetcher logs its own failures
		result.Err = err
		return result
	}

	links, err := s.parser.ParseOccurrencePage(html)
	if err != nil {
		s.logger.ErrorWithFields("Failed to parse occurrence page", map[string]interface{}{
			"url":   occ.URL,
			"error": err.Error(),
		})
		result.Err = err
		return result
	}

	if len(links) == 0 {
		s.logger.ErrorWithFields("No image pages found for occurrence", map[string]interface{}{
			"url":           occ.URL,
			"occurrence_id": occ.ID,
		})
	} else {
		s.logger.DebugWithFields("Found image pages", map[string]interface{}{
			"url":   occ.URL,
			"count": len(links),
		})
	}

	result.ImagePages = links
	return result
}

// buildJobs numbers each occurrence's image pages from 1 in discovery order
func buildJobs(results []models.OccurrenceResult) []models.DownloadJob {
	var jobs []models.DownloadJob
	for _, r := range results {
		for i, page := range r.ImagePages {
			jobs = append(jobs, models.DownloadJob{
				ImagePageURL: page,
				OccurrenceID: r.Occurrence.ID,
				Index:        i + 1,
			})
		}
	}
	return jobs
}

// downloadAll runs phase 2
func (s *Scraper) downloadAll(ctx context.Context, jobs []models.DownloadJob) []models.DownloadResult {
	results := make([]models.DownloadResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(s.maxConnections)

	for i, job := range jobs {
		i, job := i, job
		results[i].Job = job
		if ctx.Err() != nil {
			results[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			s.logger.DebugWithFields("Processing image page", map[string]interface{}{
				"url":           job.ImagePageURL,
				"occurrence_id": job.OccurrenceID,
			})
			results[i] = s.downloader.Download(ctx, job)
			return nil
		})
	}

	g.Wait()
	return results
}

func (s *Scraper) summarize(discovered []models.OccurrenceResult, downloads []models.DownloadResult, start time.Time) *models.Summary {
	summary := &models.Summary{
		Occurrences: len(discovered),
		Files:       []string{},
	}

	for _, r := range discovered {
		if r.Err != nil {
			summary.FailedOccurrences++
		}
		summary.ImagePages += len(r.ImagePages)
	}

	for _, r := range downloads {
		if r.Success() {
			summary.Downloaded++
			summary.Files = append(summary.Files, r.Path)
		} else {
			summary.Failed++
		}
	}

	if s.store != nil {
		summary.OutputDir = s.store.GetOutputDir()
	}

	summary.Duration = time.Since(start)
	return summary
}
