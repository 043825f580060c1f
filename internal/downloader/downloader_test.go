package downloader

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "invasoras/pkg/errors"
	"invasoras/pkg/gbif"
	"invasoras/pkg/logger"
	"invasoras/pkg/models"
	"invasoras/pkg/storage"
)

// pngHeader is enough of a PNG for content sniffing
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// MockFetcher serves canned pages keyed by URL
type MockFetcher struct {
	pages map[string]string
	err   error
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	html, ok := m.pages[url]
	if !ok {
		return "", apperrors.Status(http.StatusNotFound, url)
	}
	return html, nil
}

func imagePage(src string) string {
	return fmt.Sprintf(`<html><body><img class="imgContainer" src="%s"></body></html>`, src)
}

// protocolRelative strips the scheme so the parser puts https: back
func protocolRelative(u string) string {
	return u[len("http:"):]
}

type fixture struct {
	dir        string
	log        *logger.TestLogger
	downloader *Downloader
	fetcher    *MockFetcher
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "images")
	manager, err := storage.NewManager(dir)
	require.NoError(t, err)

	log := logger.NewTestLogger()
	fetcher := &MockFetcher{pages: map[string]string{}}

	// The parser always yields https, the test CDN speaks plain http
	client := &http.Client{Transport: rewriteScheme{base: http.DefaultTransport}}

	return &fixture{
		dir:        dir,
		log:        log,
		fetcher:    fetcher,
		downloader: New(client, fetcher, gbif.DefaultParser(log), manager, opts, log),
	}
}

type rewriteScheme struct {
	base http.RoundTripper
}

func (r rewriteScheme) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	return r.base.RoundTrip(clone)
}

func TestDownloadJPEG(t *testing.T) {
	data := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00 jpeg body")
	var gotUA string

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	defer cdn.Close()

	f := newFixture(t, Options{})
	pageURL := "https://www.gbif.org/occurrence/1270744105/media/1"
	f.fetcher.pages[pageURL] = imagePage(protocolRelative(cdn.URL + "/v1/image/abc.jpg"))

	result := f.downloader.Download(context.Background(), models.DownloadJob{
		ImagePageURL: pageURL,
		OccurrenceID: "1270744105",
		Index:        1,
	})

	require.NoError(t, result.Err)
	assert.True(t, result.Success())
	assert.Equal(t, filepath.Join(f.dir, "1270744105_1.jpg"), result.Path)
	assert.Equal(t, int64(len(data)), result.Size)
	assert.Equal(t, "image/jpeg", result.ContentType)
	assert.Equal(t, DefaultUserAgent, gotUA)

	content, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, data, content)
	assert.True(t, f.log.HasMessage("image saved"))
}

func TestDownloadPNGKeepsSubtype(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngHeader)
	}))
	defer cdn.Close()

	f := newFixture(t, Options{UserAgent: "test-agent"})
	f.fetcher.pages["https://www.gbif.org/media/2"] = imagePage(protocolRelative(cdn.URL + "/b.png"))

	result := f.downloader.Download(context.Background(), models.DownloadJob{
		ImagePageURL: "https://www.gbif.org/media/2",
		OccurrenceID: "42",
		Index:        3,
	})

	require.NoError(t, result.Err)
	assert.Equal(t, filepath.Join(f.dir, "42_3.png"), result.Path)
}

func TestDownloadBareImageContentType(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image")
		w.Write(pngHeader)
	}))
	defer cdn.Close()

	f := newFixture(t, Options{UserAgent: "test-agent"})
	f.fetcher.pages["https://www.gbif.org/media/9"] = imagePage(protocolRelative(cdn.URL + "/c"))

	result := f.downloader.Download(context.Background(), models.DownloadJob{
		ImagePageURL: "https://www.gbif.org/media/9",
		OccurrenceID: "42",
		Index:        1,
	})

	require.NoError(t, result.Err)
	assert.Equal(t, filepath.Join(f.dir, "42_1.image"), result.Path)
}

func TestDownloadNonImageContentType(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer cdn.Close()

	f := newFixture(t, Options{})
	f.fetcher.pages["https://www.gbif.org/media/1"] = imagePage(protocolRelative(cdn.URL + "/a"))

	result := f.downloader.Download(context.Background(), models.DownloadJob{
		ImagePageURL: "https://www.gbif.org/media/1",
		OccurrenceID: "42",
		Index:        1,
	})

	require.Error(t, result.Err)
	assert.False(t, result.Success())
	assert.Equal(t, apperrors.ErrorTypeContentType, apperrors.TypeOf(result.Err))
	assertEmptyDir(t, f.dir)
}

func TestDownloadNonSuccessStatus(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer cdn.Close()

	f := newFixture(t, Options{})
	f.fetcher.pages["https://www.gbif.org/media/1"] = imagePage(protocolRelative(cdn.URL + "/gone.jpg"))

	result := f.downloader.Download(context.Background(), models.DownloadJob{
		ImagePageURL: "https://www.gbif.org/media/1",
		OccurrenceID: "42",
		Index:        1,
	})

	require.Error(t, result.Err)
	assert.Equal(t, apperrors.ErrorTypeStatus, apperrors.TypeOf(result.Err))

	errs := f.log.GetMessagesByLevel("ERROR")
	require.Len(t, errs, 1)
	assert.Equal(t, http.StatusNotFound, errs[0].Fields["status"])
	assertEmptyDir(t, f.dir)
}

func TestDownloadImagePageWithoutImage(t *testing.T) {
	f := newFixture(t, Options{})
	f.fetcher.pages["https://www.gbif.org/media/1"] = `<html><body>no picture</body></html>`

	result := f.downloader.Download(context.Background(), models.DownloadJob{
		ImagePageURL: "https://www.gbif.org/media/1",
		OccurrenceID: "42",
		Index:        1,
	})

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, gbif.ErrNoImage)
	assert.True(t, f.log.HasMessage("no image found on image page"))
}

func TestDownloadFetchFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.fetcher.err = apperrors.New(apperrors.ErrorTypeNetwork, "connection reset")

	result := f.downloader.Download(context.Background(), models.DownloadJob{
		ImagePageURL: "https://www.gbif.org/media/1",
		OccurrenceID: "42",
		Index:        1,
	})

	assert.Equal(t, apperrors.ErrorTypeNetwork, apperrors.TypeOf(result.Err))
	assert.Empty(t, result.ImageURL)
}

func TestDownloadTimeoutLeavesNoFile(t *testing.T) {
	release := make(chan struct{})
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(bytes.Repeat([]byte{0xff}, 1024))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer cdn.Close()
	defer close(release)

	f := newFixture(t, Options{Timeout: 100 * time.Millisecond})
	f.fetcher.pages["https://www.gbif.org/media/1"] = imagePage(protocolRelative(cdn.URL + "/slow.jpg"))

	result := f.downloader.Download(context.Background(), models.DownloadJob{
		ImagePageURL: "https://www.gbif.org/media/1",
		OccurrenceID: "42",
		Index:        1,
	})

	require.Error(t, result.Err)
	assert.Equal(t, apperrors.ErrorTypeStorage, apperrors.TypeOf(result.Err))
	assertEmptyDir(t, f.dir)
}

func TestDownloadCancelled(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer cdn.Close()

	f := newFixture(t, Options{})
	f.fetcher.pages["https://www.gbif.org/media/1"] = imagePage(protocolRelative(cdn.URL + "/a.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result := f.downloader.Download(ctx, models.DownloadJob{
		ImagePageURL: "https://www.gbif.org/media/1",
		OccurrenceID: "42",
		Index:        1,
	})

	assert.True(t, apperrors.IsCancelled(result.Err))
	assert.False(t, f.log.HasError())
}

func TestDownloadVerifyContent(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		wantErr bool
	}{
		{"real png", pngHeader, false},
		{"html posing as image", []byte("<!DOCTYPE html><html><body>blocked</body></html>"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				w.Write(tt.body)
			}))
			defer cdn.Close()

			f := newFixture(t, Options{VerifyContent: true})
			f.fetcher.pages["https://www.gbif.org/media/1"] = imagePage(protocolRelative(cdn.URL + "/x.png"))

			result := f.downloader.Download(context.Background(), models.DownloadJob{
				ImagePageURL: "https://www.gbif.org/media/1",
				OccurrenceID: "42",
				Index:        1,
			})

			if tt.wantErr {
				assert.Equal(t, apperrors.ErrorTypeContentType, apperrors.TypeOf(result.Err))
				assertEmptyDir(t, f.dir)
				return
			}

			require.NoError(t, result.Err)
			content, err := os.ReadFile(result.Path)
			require.NoError(t, err)
			assert.Equal(t, tt.body, content)
		})
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
