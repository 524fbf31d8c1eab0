package segment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/vodgrab/vodgrab/internal/catalog"
)

// DefaultFetchTimeout bounds a single manifest or segment request. Distinct
// from the retry policy, which the download pipeline owns.
const DefaultFetchTimeout = 60 * time.Second

// Fetcher retrieves manifests and streams segment data to disk
type Fetcher interface {
	// FetchManifest returns the ordered segment list for a playlist URL
	FetchManifest(ctx context.Context, playlistURL string) (*Manifest, error)

	// FetchSegment streams one segment to destPath and returns the bytes
	// written. A destination that already exists is not re-downloaded.
	FetchSegment(ctx context.Context, seg Segment, destPath string) (int64, error)
}

// HTTPFetcher is the production Fetcher backed by an HTTP client
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client gets a default with a
// bounded timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &HTTPFetcher{client: client}
}

// get maps transport and status failures onto the shared error taxonomy
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("segment: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &catalog.NetworkError{Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, catalog.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, catalog.ErrAuthorization
	default:
		resp.Body.Close()
		return nil, &catalog.NetworkError{Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
}

// FetchManifest retrieves and parses the playlist at playlistURL
func (f *HTTPFetcher) FetchManifest(ctx context.Context, playlistURL string) (*Manifest, error) {
	resp, err := f.get(ctx, playlistURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return ParseManifest(playlistURL, resp.Body)
}

// FetchSegment streams one segment to destPath. The write is atomic: data
// goes to a temp file that is renamed into place only when complete, so a
// terminate mid-segment never leaves a corrupt partial visible as done.
// A destination that already exists is trusted (idempotent by index) and its
// size is returned without touching the network.
func (f *HTTPFetcher) FetchSegment(ctx context.Context, seg Segment, destPath string) (int64, error) {
	if info, err := os.Stat(destPath); err == nil {
		return info.Size(), nil
	}

	resp, err := f.get(ctx, seg.URL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	tempPath := destPath + ".part"
	file, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("segment: create temp file: %w", err)
	}

	written, err := io.Copy(file, resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return 0, &catalog.NetworkError{Err: err}
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("segment: commit segment file: %w", err)
	}
	return written, nil
}
