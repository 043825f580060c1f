// Package gbif parses GBIF occurrence and image-detail pages.
//
// An occurrence page lists its media in section#occurrencePage_media; each
// img.imgContainer there sits inside a link to an image-detail page. The
// image-detail page carries the same img.imgContainer with a
// protocol-relative src pointing at the image itself.
package gbif
