package gbif

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	apperrors "invasoras/pkg/errors"
	"invasoras/pkg/logger"
)

const (
	// BaseURL is the GBIF site origin used to absolutize image-page links
	BaseURL = "https://www.gbif.org"

	// MediaSectionID is the id of the section listing an occurrence's media
	MediaSectionID = "occurrencePage_media"

	// ImageClass marks media images on occurrence and image-detail pages
	ImageClass = "imgContainer"
)

// ErrNoImage is returned when an image-detail page has no marked image
// with a source attribute
var ErrNoImage = stderrors.New("no image found on image page")

// Parser extracts image links from GBIF pages
type Parser struct {
	origin     *url.URL
	sectionID  string
	imageClass string
	logger     logger.Logger
}

// NewParser creates a parser for the given site origin and markup names.
// Empty arguments fall back to the GBIF defaults.
func NewParser(origin, sectionID, imageClass string, log logger.Logger) (*Parser, error) {
	if origin == "" {
		origin = BaseURL
	}
	if sectionID == "" {
		sectionID = MediaSectionID
	}
	if imageClass == "" {
		imageClass = ImageClass
	}
	if log == nil {
		log = logger.GetLogger()
	}

	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid site origin %q", origin)
	}

	return &Parser{
		origin:     u,
		sectionID:  sectionID,
		imageClass: imageClass,
		logger:     log.WithField("component", "parser"),
	}, nil
}

// DefaultParser returns a parser for www.gbif.org
func DefaultParser(log logger.Logger) *Parser {
	p, _ := NewParser(BaseURL, MediaSectionID, ImageClass, log)
	return p
}

func (p *Parser) imageSelector() string {
	return "img." + p.imageClass
}

// ParseOccurrencePage returns the unique absolute image-detail page URLs
// linked from the media section of an occurrence page, in document order.
// A page without a media section yields an empty slice and no error.
func (p *Parser) ParseOccurrencePage(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeParsing, err, "")
	}

	section := doc.Find("section#" + p.sectionID).First()
	if section.Length() == 0 {
		p.logger.DebugWithFields("no media section found", map[string]interface{}{
			"section": p.sectionID,
		})
		return []string{}, nil
	}

	seen := make(map[string]bool)
	links := []string{}

	section.Find(p.imageSelector()).Each(func(i int, img *goquery.Selection) {
		anchor := img.Closest("a")
		href, ok := anchor.Attr("href")
		if anchor.Length() == 0 || !ok || strings.TrimSpace(href) == "" {
			p.logger.DebugWithFields("image without link", map[string]interface{}{
				"position": i,
			})
			return
		}

		link, err := p.absolute(strings.TrimSpace(href))
		if err != nil {
			p.logger.DebugWithFields("skipping malformed image link", map[string]interface{}{
				"href":  href,
				"error": err.Error(),
			})
			return
		}

		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
		p.logger.DebugWithFields("found image page link", map[string]interface{}{
			"url": link,
		})
	})

	return links, nil
}

// ParseImagePage returns the direct image URL of the first marked image on
// an image-detail page. Protocol-relative sources get an https: scheme.
func (p *Parser) ParseImagePage(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrorTypeParsing, err, "")
	}

	src, ok := doc.Find(p.imageSelector()).First().Attr("src")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return "", apperrors.Wrap(apperrors.ErrorTypeParsing, ErrNoImage, "")
	}

	switch {
	case strings.HasPrefix(src, "//"):
		return "https:" + src, nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return src, nil
	default:
		return p.absolute(src)
	}
}

// absolute resolves ref against the site origin
func (p *Parser) absolute(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return p.origin.ResolveReference(u).String(), nil
}
