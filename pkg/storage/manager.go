package storage

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// partSuffix marks files that are still being written
const partSuffix = ".part"

// Manager handles writing downloaded images into the output directory
type Manager struct {
	outputDir string
	saved     int
	mu        sync.Mutex
}

// NewManager creates a new storage manager, creating outputDir and any
// missing parents
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{outputDir: outputDir}, nil
}

// SaveImage streams r into filename inside the output directory and returns
// the final path and the number of bytes written. Data goes to a temporary
// file that is renamed into place only once the copy completes, so a failed
// or cancelled transfer never leaves a partial image behind. An existing
// file with the same name is overwritten.
func (m *Manager) SaveImage(r io.Reader, filename string) (string, int64, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", 0, fmt.Errorf("invalid file name %q", filename)
	}

	path := filepath.Join(m.outputDir, filename)
	tempFile := path + partSuffix

	out, err := os.Create(tempFile)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	size, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", size, fmt.Errorf("failed to save image data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", size, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return "", size, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved++
	m.mu.Unlock()

	return path, size, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetSavedCount returns the number of images saved by this manager
func (m *Manager) GetSavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

// FileName returns the on-disk name of the index-th image (1-based) of an
// occurrence, e.g. "1270744105_2.jpg"
func FileName(occurrenceID string, index int, ext string) string {
	id := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, occurrenceID)
	return fmt.Sprintf("%s_%d.%s", id, index, ext)
}

// ExtensionFromContentType returns the file extension for an image media
// type. Parameters are ignored and "jpeg" is shortened to "jpg". A bare
// "image" with no subtype is accepted and named after itself. Media types
// outside image/* are rejected.
func ExtensionFromContentType(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("invalid content type %q: %w", contentType, err)
	}

	if mediaType == "image" {
		return "image", nil
	}

	kind, sub, ok := strings.Cut(mediaType, "/")
	if !ok || kind != "image" || sub == "" {
		return "", fmt.Errorf("not an image content type: %q", contentType)
	}

	// image/svg+xml keeps only the base subtype
	if i := strings.IndexByte(sub, '+'); i > 0 {
		sub = sub[:i]
	}

	if sub == "jpeg" {
		return "jpg", nil
	}
	return sub, nil
}
