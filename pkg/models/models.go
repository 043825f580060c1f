package models

import (
	"net/url"
	"strings"
	"time"
)

// Occurrence is a GBIF occurrence page to crawl
type Occurrence struct {
	URL string
	ID  string
}

// NewOccurrence builds an Occurrence from its page URL
func NewOccurrence(occurrenceURL string) Occurrence {
	return Occurrence{URL: occurrenceURL, ID: OccurrenceID(occurrenceURL)}
}

// OccurrenceResult is the outcome of link discovery on one occurrence page
type OccurrenceResult struct {
	Occurrence Occurrence
	ImagePages []string
	Err        error
}

// DownloadJob is a single image-detail page to resolve and download
type DownloadJob struct {
	ImagePageURL string
	OccurrenceID string
	Index        int
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job         DownloadJob
	ImageURL    string
	Path        string
	ContentType string
	Size        int64
	Err         error
	Duration    time.Duration
}

// Success reports whether the image was written to disk
func (r DownloadResult) Success() bool {
	return r.Err == nil && r.Path != ""
}

// Summary aggregates a whole run
type Summary struct {
	Occurrences       int
	FailedOccurrences int
	ImagePages        int
	Downloaded        int
	Failed            int
	Files             []string
	OutputDir         string
	Duration          time.Duration
}

// OccurrenceID returns the final path segment of an occurrence URL
func OccurrenceID(occurrenceURL string) string {
	trimmed := strings.TrimRight(occurrenceURL, "/")
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		trimmed = strings.TrimRight(u.Path, "/")
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
