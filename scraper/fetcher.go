package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"donorwall/httputil"
)

const maxBodySize = 16 << 20

// StatusError reports a non-2xx response from the campaign site.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type HTTPFetcher struct {
	client *http.Client
	creds  *httputil.Credentials
}

func NewHTTPFetcher(client *http.Client, creds *httputil.Credentials) *HTTPFetcher {
	return &HTTPFetcher{client: client, creds: creds}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	f.creds.Apply(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return body, nil
}

// FetchToFile fetches url and writes the body verbatim to path, replacing any
// previous snapshot. The body is saved even when the status is not 2xx.
func FetchToFile(ctx context.Context, f Fetcher, url, path string) ([]byte, error) {
	body, fetchErr := f.Fetch(ctx, url)
	if body != nil {
		if err := SaveSnapshot(path, body); err != nil {
			return nil, err
		}
	}
	if fetchErr != nil {
		return body, fetchErr
	}
	return body, nil
}

// SaveSnapshot writes body to path through a temp file and rename.
func SaveSnapshot(path string, body []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	return nil
}
