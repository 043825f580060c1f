package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	apperrors "invasoras/pkg/errors"
	"invasoras/pkg/logger"
)

const (
	// DefaultEndpoint is the ScraperAPI relay endpoint
	DefaultEndpoint = "http://api.scraperapi.com"

	// DefaultTimeout bounds a single relay request
	DefaultTimeout = 15 * time.Second
)

// Client fetches pages through a third-party scraping relay. The relay
// performs the outbound request; its response is treated as an ordinary
// HTTP response.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	timeout    time.Duration
	logger     logger.Logger
}

// NewClient creates a relay client. A nil httpClient uses
// http.DefaultClient, a nil logger the global logger.
func NewClient(httpClient *http.Client, endpoint, apiKey string, timeout time.Duration, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
		timeout:    timeout,
		logger:     log.WithField("component", "relay"),
	}
}

// BuildURL wraps target in a relay request URL carrying the API key
func (c *Client) BuildURL(target string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid relay endpoint %q: %w", c.endpoint, err)
	}

	params := u.Query()
	params.Set("api_key", c.apiKey)
	params.Set("url", target)
	u.RawQuery = params.Encode()

	return u.String(), nil
}

// Fetch retrieves the HTML of target through the relay. Any non-200
// response or transport failure is logged and returned as an
// *errors.Error; Fetch never panics on bad input.
func (c *Client) Fetch(ctx context.Context, target string) (string, error) {
	relayURL, err := c.BuildURL(target)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrorTypeUnknown, err, target)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, relayURL, nil)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrorTypeUnknown, redact(err, target), target)
	}

	start := time.Now()
	c.logger.DebugWithFields("fetching page through relay", map[string]interface{}{
		"url": target,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = redact(err, target)
		wrapped := apperrors.Wrap(apperrors.ErrorTypeNetwork, err, target)
		if !apperrors.IsCancelled(wrapped) {
			c.logger.ErrorWithFields("relay request failed", map[string]interface{}{
				"url":      target,
				"error":    err.Error(),
				"duration": time.Since(start),
			})
		}
		return "", wrapped
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("relay response received", map[string]interface{}{
		"url":      target,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorWithFields("relay returned non-success status", map[string]interface{}{
			"url":    target,
			"status": resp.StatusCode,
		})
		io.Copy(io.Discard, resp.Body)
		return "", apperrors.Status(resp.StatusCode, target)
	}

	body, err := decodeBody(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		err = redact(err, target)
		wrapped := apperrors.Wrap(apperrors.ErrorTypeNetwork, err, target)
		if !apperrors.IsCancelled(wrapped) {
			c.logger.ErrorWithFields("failed to read relay response", map[string]interface{}{
				"url":   target,
				"error": err.Error(),
			})
		}
		return "", wrapped
	}

	c.logger.DebugWithFields("page content retrieved", map[string]interface{}{
		"url":  target,
		"size": len(body),
	})

	return body, nil
}

// redact replaces the relay URL in a *url.Error with target so the API key
// never reaches logs or callers. The cause chain is kept for errors.Is.
func redact(err error, target string) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	return &url.Error{Op: ue.Op, URL: target, Err: ue.Err}
}

// decodeBody reads r as UTF-8 text, converting from the charset declared
// in the content type or sniffed from the document
func decodeBody(r io.Reader, contentType string) (string, error) {
	reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to create reader with correct encoding: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, reader); err != nil {
		return "", err
	}
	return sb.String(), nil
}
