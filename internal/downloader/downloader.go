package downloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	apperrors "invasoras/pkg/errors"
	"invasoras/pkg/logger"
	"invasoras/pkg/models"
	"invasoras/pkg/storage"
)

const (
	// DefaultUserAgent is sent on direct image requests
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko)"

	// DefaultTimeout bounds a single image request
	DefaultTimeout = 15 * time.Second

	// sniffLen is how much of the body is inspected when verifying content
	sniffLen = 3072
)

// PageFetcher retrieves page HTML, usually through the scraping relay
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ImagePageParser extracts the direct image URL from an image-detail page
type ImagePageParser interface {
	ParseImagePage(html string) (string, error)
}

// ImageStorage persists image bodies
type ImageStorage interface {
	SaveImage(r io.Reader, filename string) (string, int64, error)
}

// Options tunes the direct image request
type Options struct {
	UserAgent string
	Timeout   time.Duration

	// VerifyContent sniffs the first bytes of the body and rejects anything
	// that does not look like an image, whatever the declared type says
	VerifyContent bool
}

// Downloader resolves image-detail pages and downloads the images they show
type Downloader struct {
	client  *http.Client
	fetcher PageFetcher
	parser  ImagePageParser
	storage ImageStorage
	opts    Options
	logger  logger.Logger
}

// New creates a downloader. A nil client uses http.DefaultClient.
func New(client *http.Client, fetcher PageFetcher, parser ImagePageParser, store ImageStorage, opts Options, log logger.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Downloader{
		client:  client,
		fetcher: fetcher,
		parser:  parser,
		storage: store,
		opts:    opts,
		logger:  log.WithField("component", "downloader"),
	}
}

// Download handles a single job: fetch the image-detail page, resolve the
// direct image URL, download it and write it to storage. Failures are
// logged and reported in the result; they never panic or abort the run.
func (d *Downloader) Download(ctx context.Context, job models.DownloadJob) models.DownloadResult {
	start := time.Now()
	result := models.DownloadResult{Job: job}

	finish := func(err error) models.DownloadResult {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	html, err := d.fetcher.Fetch(ctx, job.ImagePageURL)
	if err != nil {
		// the fetcher already logged the failure
		return finish(err)
	}

	imageURL, err := d.parser.ParseImagePage(html)
	if err != nil {
		d.logger.ErrorWithFields("no image found on image page", map[string]interface{}{
			"url":           job.ImagePageURL,
			"occurrence_id": job.OccurrenceID,
		})
		return finish(err)
	}
	result.ImageURL = imageURL

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		d.logger.ErrorWithFields("invalid image URL", map[string]interface{}{
			"url":   imageURL,
			"error": err.Error(),
		})
		return finish(apperrors.Wrap(apperrors.ErrorTypeParsing, err, imageURL))
	}
	req.Header.Set("User-Agent", d.opts.UserAgent)

	d.logger.DebugWithFields("downloading image", map[string]interface{}{
		"url":           imageURL,
		"occurrence_id": job.OccurrenceID,
		"index":         job.Index,
	})

	resp, err := d.client.Do(req)
	if err != nil {
		wrapped := apperrors.Wrap(apperrors.ErrorTypeNetwork, err, imageURL)
		if !apperrors.IsCancelled(wrapped) {
			d.logger.ErrorWithFields("image request failed", map[string]interface{}{
				"url":   imageURL,
				"error": err.Error(),
			})
		}
		return finish(wrapped)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.ErrorWithFields("image download failed", map[string]interface{}{
			"url":    imageURL,
			"status": resp.StatusCode,
		})
		io.Copy(io.Discard, resp.Body)
		return finish(apperrors.Status(resp.StatusCode, imageURL))
	}

	contentType := resp.Header.Get("Content-Type")
	result.ContentType = contentType

	ext, err := storage.ExtensionFromContentType(contentType)
	if err != nil {
		d.logger.ErrorWithFields("invalid content type for image", map[string]interface{}{
			"url":          imageURL,
			"content_type": contentType,
		})
		return finish(apperrors.Wrap(apperrors.ErrorTypeContentType, err, imageURL))
	}

	var body io.Reader = resp.Body
	if d.opts.VerifyContent {
		body, err = d.verify(resp.Body, imageURL)
		if err != nil {
			return finish(err)
		}
	}

	path, size, err := d.storage.SaveImage(body, storage.FileName(job.OccurrenceID, job.Index, ext))
	result.Size = size
	if err != nil {
		wrapped := apperrors.Wrap(apperrors.ErrorTypeStorage, err, imageURL)
		if !apperrors.IsCancelled(wrapped) {
			d.logger.ErrorWithFields("failed to save image", map[string]interface{}{
				"url":   imageURL,
				"error": err.Error(),
			})
		}
		return finish(wrapped)
	}

	result.Path = path
	result = finish(nil)

	d.logger.InfoWithFields("image saved", map[string]interface{}{
		"path":     path,
		"size":     size,
		"duration": result.Duration,
	})

	return result
}

// verify sniffs the head of body and returns a reader that replays it
// followed by the rest of the stream
func (d *Downloader) verify(body io.Reader, imageURL string) (io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		wrapped := apperrors.Wrap(apperrors.ErrorTypeNetwork, err, imageURL)
		if !apperrors.IsCancelled(wrapped) {
			d.logger.ErrorWithFields("failed to read image data", map[string]interface{}{
				"url":   imageURL,
				"error": err.Error(),
			})
		}
		return nil, wrapped
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !isImage(detected) {
		d.logger.ErrorWithFields("image content does not match declared type", map[string]interface{}{
			"url":      imageURL,
			"detected": detected.String(),
		})
		return nil, &apperrors.Error{
			Type:    apperrors.ErrorTypeContentType,
			Message: "content sniffed as " + detected.String(),
			URL:     imageURL,
		}
	}

	return io.MultiReader(bytes.NewReader(head), body), nil
}

func isImage(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}
