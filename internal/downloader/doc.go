// Package downloader turns image-detail page URLs into image files.
package downloader
