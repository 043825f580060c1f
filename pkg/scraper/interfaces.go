package scraper

import (
	"context"

	"invasoras/pkg/models"
)

// PageFetcher retrieves the HTML of an occurrence page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// OccurrenceParser extracts image-detail page links from an occurrence page
type OccurrenceParser interface {
	ParseOccurrencePage(html string) ([]string, error)
}

// ImageDownloader resolves and stores a single image
type ImageDownloader interface {
	Download(ctx context.Context, job models.DownloadJob) models.DownloadResult
}
